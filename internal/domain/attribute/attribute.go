// Package attribute defines the fixed set of comparable attributes along which
// brands and influencers are matched, and their index partitions.
package attribute

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Key names one comparable attribute, using the brand-side wire name.
type Key string

// Partition names the similarity index subdivision holding one attribute's vectors.
type Partition string

const (
	TypeOfProduct    Key = "type_of_product"
	TargetGroup      Key = "target_group"
	Positioning      Key = "positioning"
	BrandPersonality Key = "brand_personality"
	Vision           Key = "vision"
)

// ErrUnknownKey is returned when parsing a name that is not an attribute.
var ErrUnknownKey = errors.New("unknown attribute")

var keys = [...]Key{TypeOfProduct, TargetGroup, Positioning, BrandPersonality, Vision}

var partitions = map[Key]Partition{
	TypeOfProduct:    "Type_of_content",
	TargetGroup:      "target_Audience",
	Positioning:      "positioning",
	BrandPersonality: "personality",
	Vision:           "vision",
}

// All returns every attribute key in canonical order.
func All() []Key {
	out := make([]Key, len(keys))
	copy(out, keys[:])
	return out
}

// Partitions returns every partition in canonical key order.
func Partitions() []Partition {
	out := make([]Partition, len(keys))
	for i, k := range keys {
		out[i] = partitions[k]
	}
	return out
}

// Valid reports whether k is one of the known keys.
func (k Key) Valid() bool {
	_, ok := partitions[k]
	return ok
}

// Partition returns the index partition of k. Unknown keys map to "".
func (k Key) Partition() Partition { return partitions[k] }

func (k Key) String() string { return string(k) }

func (p Partition) String() string { return string(p) }

// Key returns the attribute stored in partition p.
func (p Partition) Key() (Key, bool) {
	for k, v := range partitions {
		if v == p {
			return k, true
		}
	}
	return "", false
}

// Parse resolves a brand-side attribute name. Matching is case-insensitive.
func Parse(s string) (Key, error) {
	k := Key(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, s)
	}
	return k, nil
}

// ParsePartition resolves a partition name. Both the partition name and the
// attribute key are accepted so influencer payloads may use either.
func ParsePartition(s string) (Partition, error) {
	s = strings.TrimSpace(s)
	for _, k := range keys {
		p := partitions[k]
		if strings.EqualFold(string(p), s) || strings.EqualFold(string(k), s) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: partition %q", ErrUnknownKey, s)
}

// Normalize canonicalizes attribute text: NFKC, control characters other
// than newline and tab removed, surrounding whitespace trimmed.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(text)
}

// Texts maps each attribute of one entity to its text.
type Texts map[Key]string

// ParseTexts converts a wire map keyed by attribute name into Texts.
func ParseTexts(in map[string]string) (Texts, error) {
	out := make(Texts, len(in))
	for name, text := range in {
		k, err := Parse(name)
		if err != nil {
			return nil, err
		}
		out[k] = text
	}
	return out, nil
}

// Clean returns a copy holding normalized texts, dropping unknown keys and
// texts that are empty after normalization.
func (t Texts) Clean() Texts {
	out := make(Texts, len(t))
	for k, v := range t {
		if !k.Valid() {
			continue
		}
		if v = Normalize(v); v != "" {
			out[k] = v
		}
	}
	return out
}

// Keys returns the present keys in canonical order.
func (t Texts) Keys() []Key {
	out := make([]Key, 0, len(t))
	for _, k := range keys {
		if _, ok := t[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Wire converts t back into a map keyed by attribute name.
func (t Texts) Wire() map[string]string {
	out := make(map[string]string, len(t))
	for k, v := range t {
		out[string(k)] = v
	}
	return out
}
