package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameAsComparesIDsOnly(t *testing.T) {
	a := Stat{ID: 1, Icon: "heart", Title: "Health", Value: 100}
	b := Stat{ID: 1, Icon: "other", Title: "HP", Value: 5}
	c := Stat{ID: 2, Icon: "heart", Title: "Health", Value: 100}

	assert.True(t, a.SameAs(b))
	assert.False(t, a.SameAs(c))

	assert.True(t, Buff{ID: 7, Title: "Rage"}.SameAs(Buff{ID: 7}))
	assert.False(t, Buff{ID: 7}.SameAs(Buff{ID: 8}))
}

func TestBuffCloneDoesNotShareStats(t *testing.T) {
	orig := Buff{ID: 1, Stats: []BuffStat{{StatID: 2, Value: 5}}}
	clone := orig.Clone()
	clone.Stats[0].Value = 50

	assert.Equal(t, 5.0, orig.Stats[0].Value)
	assert.Equal(t, 50.0, clone.Stats[0].Value)
}

func TestCatalogLookup(t *testing.T) {
	catalog := &Catalog{
		Stats: []Stat{{ID: 0, Title: "Health"}, {ID: 3, Title: "Lifesteal"}},
		Buffs: []Buff{{ID: 10, Title: "Vampire"}},
	}

	s, ok := catalog.Stat(3)
	assert.True(t, ok)
	assert.Equal(t, "Lifesteal", s.Title)

	_, ok = catalog.Stat(9)
	assert.False(t, ok)
}

func TestBindingsIDs(t *testing.T) {
	b := Bindings{HealthID: 0, ArmorID: 1, DamageID: 2, LifestealID: 3}
	assert.Equal(t, []int{0, 1, 2, 3}, b.IDs())
}
