package client

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/don-licenciao/MapyChat-web/internal/model"
)

func TestConversation_SnapshotIsACopy(t *testing.T) {
	conv := NewConversation(model.ChatMessage{Role: model.RoleUser, Content: model.Text("a")})

	snap := conv.Snapshot()
	snap[0] = model.ChatMessage{Role: model.RoleUser, Content: model.Text("changed")}

	m, _ := conv.Last()
	assert.Equal(t, "a", m.PlainText())
}

func TestConversation_UpdateReplacesWholeList(t *testing.T) {
	conv := NewConversation(model.ChatMessage{Role: model.RoleAssistant, Content: model.Text("x")})
	before := conv.Snapshot()

	var seen [][]model.ChatMessage
	conv.OnChange(func(msgs []model.ChatMessage) { seen = append(seen, msgs) })

	assert.True(t, conv.AppendToLast("y"))

	assert.Equal(t, "x", before[0].PlainText())
	m, _ := conv.Last()
	assert.Equal(t, "xy", m.PlainText())
	assert.Len(t, seen, 1)
}

func TestConversation_AppendToLastNeedsAssistant(t *testing.T) {
	conv := NewConversation(model.ChatMessage{Role: model.RoleUser, Content: model.Text("hola")})
	assert.False(t, conv.AppendToLast("x"))
	assert.False(t, NewConversation().AppendToLast("x"))
}

func TestConversation_AppendToMultipartAssistant(t *testing.T) {
	conv := NewConversation(model.ChatMessage{
		Role:    model.RoleAssistant,
		Content: model.Parts{model.TextPart{Text: "a"}},
	})
	conv.AppendToLast("b")

	m, _ := conv.Last()
	assert.Equal(t, model.Parts{model.TextPart{Text: "ab"}}, m.Content)
}

func TestConversation_DropEmptyAssistant(t *testing.T) {
	conv := NewConversation(
		model.ChatMessage{Role: model.RoleUser, Content: model.Text("hola")},
		model.ChatMessage{Role: model.RoleAssistant, Content: model.Text("")},
	)
	assert.True(t, conv.DropEmptyAssistant())
	assert.Equal(t, 1, conv.Len())
	assert.False(t, conv.DropEmptyAssistant())

	conv = NewConversation(model.ChatMessage{Role: model.RoleAssistant, Content: model.Text("partial")})
	assert.False(t, conv.DropEmptyAssistant())
}
