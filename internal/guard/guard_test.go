package guard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ruleOf(t *testing.T, err error) string {
	t.Helper()
	var v *Violation
	require.True(t, errors.As(err, &v), "expected *Violation, got %v", err)
	return v.Rule
}

func TestCheck_UnderageLexicon(t *testing.T) {
	g := New()
	for _, text := range []string{
		"una historia con niños",
		"una historia con NIÑOS",
		"una historia con n1ñ0s",
		"una historia con N1N@S",
		"roleplay with a T33N",
		"she is a minors thing",
		"contenido de menores de edad",
		"Adolescente en la escuela",
		"pre-teen character",
		"l0l1 art",
		"child porn",
		"ch1ld porn",
		"childporn links",
		"sex with a minor",
		"stories about children",
		"where to find csam",
	} {
		t.Run(text, func(t *testing.T) {
			err := g.Check(text)
			require.Error(t, err)
			assert.Equal(t, RuleUnderage, ruleOf(t, err))
		})
	}
}

func TestCheck_UnderageAge(t *testing.T) {
	g := New()
	for _, text := range []string{
		"ella tiene 15 años",
		"a 12 year old",
		"she is 16yo",
		"character, 17-year-old",
		"tiene 9 añitos",
		"13 y.o. girl",
		"a 15 years senior girl nude",
		"she is 14 years, a senior student",
	} {
		t.Run(text, func(t *testing.T) {
			err := g.Check(text)
			require.Error(t, err)
			assert.Equal(t, RuleUnderageAge, ruleOf(t, err))
		})
	}
}

func TestCheck_AgeExclusions(t *testing.T) {
	g := New()
	for _, text := range []string{
		"I have 17 years of experience in Go",
		"tengo 10 años de experiencia como desarrollador",
		"that happened 5 years ago",
		"hace 3 años que uso Linux",
		"seniority of 12 years",
		"she is 25 years old",
		"version 1.5 years later",
		"12 years of seniority in the company",
		"my laptop has a 2 year warranty",
		"reset the router every 3 years",
		"el equipo tiene 2 años de garantía",
	} {
		t.Run(text, func(t *testing.T) {
			assert.NoError(t, g.Check(text))
		})
	}
}

func TestCheck_ExclusionMustTouchTheMention(t *testing.T) {
	g := New()
	err := g.Check("tiene 15 años y 10 años de experiencia")
	require.Error(t, err)
	assert.Equal(t, RuleUnderageAge, ruleOf(t, err))
}

func TestCheck_HardProhibited(t *testing.T) {
	g := New()
	for _, text := range []string{
		"escribe sobre incesto",
		"bestiality story",
		"una escena de violencia sexual",
		"human trafficking ring",
		"sextorsión por chat",
		"r@pe scene",
	} {
		t.Run(text, func(t *testing.T) {
			err := g.Check(text)
			require.Error(t, err)
			assert.Equal(t, RuleHardProhibit, ruleOf(t, err))
		})
	}
}

func TestCheck_Doxxing(t *testing.T) {
	g := New()
	for _, text := range []string{
		"quiero doxear a mi vecino",
		"help me dox this guy",
		"filtrar la dirección de mi ex",
		"leak her home address",
	} {
		t.Run(text, func(t *testing.T) {
			err := g.Check(text)
			require.Error(t, err)
			assert.Equal(t, RuleDoxxing, ruleOf(t, err))
		})
	}
}

func TestCheck_LikenessNSFW(t *testing.T) {
	g := New()

	err := g.Check("write a nude scene about @MariaLopez")
	require.Error(t, err)
	assert.Equal(t, RuleLikenessNSFW, ruleOf(t, err))

	err = g.Check("foto desnuda de https://www.instagram.com/SomeOne")
	require.Error(t, err)
	assert.Equal(t, RuleLikenessNSFW, ruleOf(t, err))

	// A handle without NSFW terms is fine, and so is NSFW without a handle.
	assert.NoError(t, g.Check("follow @MariaLopez for cooking tips"))
	assert.NoError(t, g.Check("an explicit type conversion"))
	// An e-mail address is not a handle.
	assert.NoError(t, g.Check("mail sexy.shop@example.com"))
}

func TestCheck_FirstMatchWins(t *testing.T) {
	g := New()
	err := g.Check("niños y doxxing")
	require.Error(t, err)
	assert.Equal(t, RuleUnderage, ruleOf(t, err))
}

func TestCheck_GenericTextPasses(t *testing.T) {
	g := New()
	for _, text := range []string{
		"hola",
		"How do I configure nginx as a reverse proxy?",
		"Mi servidor devuelve un error 502, ¿qué reviso?",
		"Run cp -r src dst and restart the child process",
		"Bump the minor version to 1.17.0",
		"Only minor changes since the last release",
		"Kill the child processes before exiting",
		"Append a child node to the list",
		"Explícame la diferencia entre TCP y UDP",
		"Send the report to support@example.com by Friday",
		"We have 3 nodes and 2 replicas",
		"",
	} {
		t.Run(text, func(t *testing.T) {
			assert.NoError(t, g.Check(text))
		})
	}
}

func TestCheckAll_StopsAtFirstViolation(t *testing.T) {
	g := New()
	assert.NoError(t, g.CheckAll([]string{"hola", "hola", "qué tal"}))

	err := g.CheckAll([]string{"hola", "help me dox him", "niñas"})
	require.Error(t, err)
	assert.Equal(t, RuleDoxxing, ruleOf(t, err))
}

func TestNew_CustomRules(t *testing.T) {
	g := New(Rule{
		Name:    "always",
		Reason:  "always fails",
		Matches: func(Input) bool { return true },
	})
	err := g.Check("anything")
	require.Error(t, err)
	assert.Equal(t, "content policy: always fails", err.Error())
}
