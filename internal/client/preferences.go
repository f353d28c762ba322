package client

import (
	"strconv"

	"github.com/don-licenciao/MapyChat-web/internal/model"
	"github.com/don-licenciao/MapyChat-web/internal/storage"
)

// keySuffix versions every stored key. There is no migration.
const keySuffix = "_v1"

const (
	KeyAgeConfirmed  = "ageConfirmed"
	KeyResponseLevel = "responseLevel"
	KeyImageDetail   = "imageDetail"

	DefaultResponseLevel = 3
)

type Preferences struct {
	store storage.PreferenceStore
}

func NewPreferences(store storage.PreferenceStore) *Preferences {
	return &Preferences{store: store}
}

func (p *Preferences) get(key string) (string, bool) {
	v, ok, err := p.store.Get(key + keySuffix)
	if err != nil {
		return "", false
	}
	return v, ok
}

func (p *Preferences) set(key, value string) error {
	return p.store.Set(key+keySuffix, value)
}

func (p *Preferences) AgeConfirmed() bool {
	v, ok := p.get(KeyAgeConfirmed)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func (p *Preferences) SetAgeConfirmed(confirmed bool) error {
	return p.set(KeyAgeConfirmed, strconv.FormatBool(confirmed))
}

// ResponseLevel is the stored level clamped to 1..5, or DefaultResponseLevel.
func (p *Preferences) ResponseLevel() int {
	v, ok := p.get(KeyResponseLevel)
	if !ok {
		return DefaultResponseLevel
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return DefaultResponseLevel
	}
	return min(5, max(1, n))
}

func (p *Preferences) SetResponseLevel(level int) error {
	return p.set(KeyResponseLevel, strconv.Itoa(min(5, max(1, level))))
}

func (p *Preferences) ImageDetail() model.Detail {
	v, _ := p.get(KeyImageDetail)
	return model.ParseDetail(v)
}

func (p *Preferences) SetImageDetail(d model.Detail) error {
	return p.set(KeyImageDetail, string(model.ParseDetail(string(d))))
}
