package model

import (
	openai "github.com/sashabaranov/go-openai"
)

// ToOpenAI converts coerced messages to the provider wire shape. Text
// content is sent as a plain string and multipart content as a part array,
// matching what go-openai's ChatCompletionMessage marshals.
func ToOpenAI(messages []ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		out := openai.ChatCompletionMessage{Role: string(msg.Role)}

		switch c := msg.Content.(type) {
		case Text:
			out.Content = string(c)
		case Parts:
			out.MultiContent = make([]openai.ChatMessagePart, 0, len(c))
			for _, p := range c {
				out.MultiContent = append(out.MultiContent, convertPart(p))
			}
		}

		result = append(result, out)
	}
	return result
}

func convertPart(p Part) openai.ChatMessagePart {
	switch v := p.(type) {
	case TextPart:
		return openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: v.Text,
		}
	case ImagePart:
		return openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    v.URL,
				Detail: openai.ImageURLDetail(v.Detail),
			},
		}
	}
	return openai.ChatMessagePart{}
}
