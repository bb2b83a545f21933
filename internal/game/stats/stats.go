// Package stats holds the data records a duel is built from: stats, buffs,
// the well-known stat bindings and the buff roll settings.
package stats

// Stat is a named numeric attribute of an entity. ID is the identity;
// Icon and Title are display metadata.
type Stat struct {
	ID    int     `yaml:"id" json:"id"`
	Icon  string  `yaml:"icon" json:"icon"`
	Title string  `yaml:"title" json:"title"`
	Value float64 `yaml:"value" json:"value"`
}

// SameAs reports whether both stats share an id.
func (s Stat) SameAs(other Stat) bool {
	return s.ID == other.ID
}

// BuffStat is a single additive delta applied to the stat StatID.
type BuffStat struct {
	StatID int     `yaml:"statId" json:"statId"`
	Value  float64 `yaml:"value" json:"value"`
}

// Buff is a bundle of stat deltas.
type Buff struct {
	ID    int        `yaml:"id" json:"id"`
	Icon  string     `yaml:"icon" json:"icon"`
	Title string     `yaml:"title" json:"title"`
	Stats []BuffStat `yaml:"stats" json:"stats"`
}

// SameAs reports whether both buffs share an id.
func (b Buff) SameAs(other Buff) bool {
	return b.ID == other.ID
}

// Clone returns a copy that does not share the Stats slice.
func (b Buff) Clone() Buff {
	out := b
	out.Stats = make([]BuffStat, len(b.Stats))
	copy(out.Stats, b.Stats)
	return out
}

// Bindings maps the stats the combat rules read to ids from the data set.
type Bindings struct {
	HealthID    int `mapstructure:"health"`
	ArmorID     int `mapstructure:"armor"`
	DamageID    int `mapstructure:"damage"`
	LifestealID int `mapstructure:"lifesteal"`
}

// IDs returns the bound ids in health, armor, damage, lifesteal order.
func (b Bindings) IDs() []int {
	return []int{b.HealthID, b.ArmorID, b.DamageID, b.LifestealID}
}

// RollSettings controls how many buffs an entity receives at match start.
type RollSettings struct {
	BuffCountMin        int  `yaml:"buffCountMin" json:"buffCountMin"`
	BuffCountMax        int  `yaml:"buffCountMax" json:"buffCountMax"`
	AllowDuplicateBuffs bool `yaml:"allowDuplicateBuffs" json:"allowDuplicateBuffs"`
}

// Catalog is a parsed data set: base stats, available buffs and roll settings.
type Catalog struct {
	Settings RollSettings `yaml:"settings" json:"settings"`
	Stats    []Stat       `yaml:"stats" json:"stats"`
	Buffs    []Buff       `yaml:"buffs" json:"buffs"`
}

// Stat looks up a base stat by id.
func (c *Catalog) Stat(id int) (Stat, bool) {
	for _, s := range c.Stats {
		if s.ID == id {
			return s, true
		}
	}
	return Stat{}, false
}
