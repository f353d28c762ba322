package guard

import "regexp"

// Input carries the three views of a text that rules match against.
type Input struct {
	// Raw is the text exactly as submitted. Handles and URLs are matched
	// here because folding would damage them.
	Raw string
	// Folded is lower-cased with diacritics removed; digits are untouched.
	Folded string
	// Normalized is Folded plus leetspeak folding.
	Normalized string
}

func NewInput(text string) Input {
	folded := Fold(text)
	return Input{
		Raw:        text,
		Folded:     folded,
		Normalized: foldLeet(folded),
	}
}

// Rule is one policy category. Rules are evaluated in order and the first
// match wins.
type Rule struct {
	Name    string
	Reason  string
	Matches func(Input) bool
}

const (
	RuleUnderage     = "underage"
	RuleUnderageAge  = "underage_age"
	RuleHardProhibit = "hard_prohibited"
	RuleDoxxing      = "doxxing"
	RuleLikenessNSFW = "likeness_nsfw"
)

var (
	underagePattern = regexp.MustCompile(`\b(?:` +
		`menor(?:es)?\s+de\s+edad|` +
		`ni(?:n|ñ)[oa]s?|nenes?|nenas?|chiquill[oa]s?|infantil(?:es)?|` +
		`(?:pre)?adolescentes?|prepuber(?:es|[ao])?|puberes?|colegial(?:as?|es)|` +
		`kids?|child(?:ren)?|child\s*porn\w*|csam|minors?|underage|under-age|` +
		`teen(?:s|ager|agers)?|pre-?teens?|` +
		`toddlers?|infants?|jailbait|schoolgirls?|schoolboys?|` +
		`little\s+(?:girl|boy)s?|young\s+(?:girl|boy)s?|` +
		`lolis?|lolicon|shotas?|shotacon|` +
		`pedofil\w*|pedophil\w*|paedophil\w*|pederast\w*` +
		`)\b`)

	// Technical phrasing that reuses "child" and "minor" without referring
	// to a person. Matches are blanked before the lexicon runs.
	underageTechnicalPattern = regexp.MustCompile(`\b(?:` +
		`child(?:ren)?\s+(?:process(?:es)?|nodes?|elements?|threads?|tasks?|class(?:es)?|` +
		`components?|windows?|themes?|tables?|records?|objects?|entit(?:y|ies)|` +
		`director(?:y|ies)|folders?|pids?|spans?|contexts?|items?|widgets?|routes?|modules?)|` +
		`minor\s+(?:bugs?|changes?|fix(?:es)?|issues?|versions?|releases?|updates?|details?|` +
		`errors?|problems?|tweaks?|edits?|keys?|league|scales?|chords?|improvements?|adjustments?|` +
		`refactors?|cleanups?)` +
		`)\b`)

	agePattern = regexp.MustCompile(`(?:^|[^0-9.,])(?:1[0-7]|[1-9])` +
		`(?:\s*-?\s*(?:anos|ano|anitos|anito|abriles|primaveras|years?|yrs?|y\.o|y/o)|-?yo)\b`)

	ageExclusionPattern = regexp.MustCompile(`(?:` +
		`(?:years?|yrs?|anos?)\s+(?:of|de)\s+(?:experience|experiencia|exp\b|trabajo|carrera|servicio|antiguedad)|` +
		`(?:years?|yrs?)\s+(?:of\s+)?(?:experience|seniority)|` +
		`(?:years?|yrs?)\s+ago|` +
		`hace\s+(?:1[0-7]|[1-9])\s*anos?|` +
		`anos?\s+(?:atras|antes)|` +
		`(?:years?|yrs?|anos?)\s+(?:of\s+|de\s+)?(?:seniority|antiguedad)|` +
		`(?:seniority\s+of|antiguedad\s+de)\s+(?:1[0-7]|[1-9])\b|` +
		`(?:every|cada)\s+(?:1[0-7]|[1-9])\s*(?:years?|yrs?|anos?)\b|` +
		`(?:years?|yrs?)\s+(?:warranty|guarantee|subscription|plan|contract|license|licence|lease|term|support)\b|` +
		`anos?\s+de\s+(?:garantia|suscripcion|contrato|licencia|soporte)|` +
		`(?:years?|anos?)\s+(?:in|en)\s+(?:the\s+|la\s+|el\s+)?(?:industry|industria|role|puesto|empresa|company|field|sector)` +
		`)`)

	hardProhibitedPattern = regexp.MustCompile(`\b(?:` +
		`incest\w*|` +
		`bestialidad|bestiality|zoofilia|zoophilia|` +
		`violencia\s+sexual|sexual\s+violence|abuso\s+sexual|sexual(?:ly)?\s+abus\w*|` +
		`rape[ds]?|raping|rapist\w*|` +
		`violad(?:or|ora|ores|a|as)|violacion(?:es)?\s+(?:sexual|grupal)|violar\s+a|` +
		`trata\s+de\s+(?:personas|blancas|mujeres)|trafficking|` +
		`explotacion\s+sexual|sexual\s+exploitation|` +
		`sextortion|sextorsion|` +
		`non-?consensual|no\s+consentid[oa]s?` +
		`)\b`)

	doxxingPattern = regexp.MustCompile(`\b(?:` +
		`dox+(?:ing|ear|eo|ed|eando)?|` +
		`(?:filtrar|exponer|publicar|revelar)\s+(?:los\s+|sus\s+|la\s+|el\s+)?` +
		`(?:datos\s+personales|direccion|domicilio|telefono|dni)\s+de|` +
		`(?:leak|leaking|expose|exposing|publish|post)\s+(?:\w+\s+){0,2}?` +
		`(?:home\s+address|personal\s+(?:data|info|information|details)|phone\s+number|real\s+name)` +
		`)\b`)

	handlePattern = regexp.MustCompile(`(?:^|[^\w@.])@[A-Za-z0-9_][A-Za-z0-9_.]{1,29}`)

	socialLinkPattern = regexp.MustCompile(`(?i)\b(?:https?://)?(?:www\.|m\.)?` +
		`(?:instagram\.com|instagr\.am|tiktok\.com|twitter\.com|x\.com|facebook\.com|fb\.com|` +
		`onlyfans\.com|twitch\.tv|youtube\.com|youtu\.be|threads\.net|snapchat\.com|` +
		`linkedin\.com|reddit\.com/u(?:ser)?)/`)

	nsfwPattern = regexp.MustCompile(`\b(?:` +
		`nsfw|desnud[oa]s?|nudes?|nudity|naked|porn\w*|` +
		`sexo|sex|sexual|sexy|erotic[ao]?|erotica|lenceria|lingerie|` +
		`xxx|hentai|onlyfans|topless|explicit[ao]?|intim[ao]s?` +
		`)\b`)
)

// DefaultRules returns the policy rules in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   RuleUnderage,
			Reason: "underage reference",
			Matches: func(in Input) bool {
				text := underageTechnicalPattern.ReplaceAllString(in.Normalized, " ")
				return underagePattern.MatchString(text)
			},
		},
		{
			Name:    RuleUnderageAge,
			Reason:  "underage age reference",
			Matches: matchesUnderageAge,
		},
		{
			Name:   RuleHardProhibit,
			Reason: "hard-prohibited content",
			Matches: func(in Input) bool {
				return hardProhibitedPattern.MatchString(in.Normalized)
			},
		},
		{
			Name:   RuleDoxxing,
			Reason: "doxxing",
			Matches: func(in Input) bool {
				return doxxingPattern.MatchString(in.Normalized)
			},
		},
		{
			Name:    RuleLikenessNSFW,
			Reason:  "real likeness in NSFW context",
			Matches: matchesLikenessNSFW,
		},
	}
}

// exclusionGap is how many bytes of separator (spaces, punctuation) may sit
// between an age mention and an exclusion phrase that qualifies it.
const exclusionGap = 3

// matchesUnderageAge flags any "<1-17> <age unit>" mention that no
// exclusion phrase touches. Digits are matched on the folded form:
// leetspeak folding would turn "1yo" into "iyo".
func matchesUnderageAge(in Input) bool {
	text := in.Folded
	exclusions := ageExclusionPattern.FindAllStringIndex(text, -1)

	for _, age := range agePattern.FindAllStringIndex(text, -1) {
		if !touchesAny(age, exclusions) {
			return true
		}
	}
	return false
}

func touchesAny(span []int, others [][]int) bool {
	for _, o := range others {
		if o[0] <= span[1]+exclusionGap && o[1] >= span[0]-exclusionGap {
			return true
		}
	}
	return false
}

func matchesLikenessNSFW(in Input) bool {
	if !handlePattern.MatchString(in.Raw) && !socialLinkPattern.MatchString(in.Raw) {
		return false
	}
	return nsfwPattern.MatchString(in.Normalized)
}
