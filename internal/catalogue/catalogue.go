// Package catalogue reads YAML catalogues of brands and influencer profiles.
//
// Format:
//
//	brands:
//	  - name: gymshark
//	    attributes:
//	      vision: empower every athlete
//	influencers:
//	  - id: alice
//	    attributes:
//	      Type_of_content: daily running vlogs
//
// Brand attributes use brand attribute names; influencer attributes accept
// partition names or brand attribute names.
package catalogue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/model"
	"github.com/okian/brandmatch/pkg/logger"
)

// ErrInvalidCatalogue is returned for a catalogue that cannot be parsed or
// names unknown attributes.
var ErrInvalidCatalogue = errors.New("invalid catalogue")

// Entry is one catalogue record as written in YAML.
type Entry struct {
	Name       string            `yaml:"name,omitempty"`
	ID         string            `yaml:"id,omitempty"`
	Attributes map[string]string `yaml:"attributes"`
}

// File is the YAML document layout.
type File struct {
	Brands      []Entry `yaml:"brands"`
	Influencers []Entry `yaml:"influencers"`
}

// Catalogue holds parsed brands and influencer profiles in file order.
type Catalogue struct {
	Brands      []model.Brand
	Influencers []model.InfluencerProfile
}

// Load reads the catalogue at path.
func Load(path string) (*Catalogue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalogue: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a catalogue from r.
func Decode(r io.Reader) (*Catalogue, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalogue, err)
	}
	return f.Parse()
}

// Parse validates f and converts its entries.
func (f File) Parse() (*Catalogue, error) {
	c := &Catalogue{
		Brands:      make([]model.Brand, 0, len(f.Brands)),
		Influencers: make([]model.InfluencerProfile, 0, len(f.Influencers)),
	}
	for i, e := range f.Brands {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: brand %d has no name", ErrInvalidCatalogue, i)
		}
		texts, err := attribute.ParseTexts(e.Attributes)
		if err != nil {
			return nil, fmt.Errorf("%w: brand %q: %w", ErrInvalidCatalogue, name, err)
		}
		c.Brands = append(c.Brands, model.Brand{Name: name, Attributes: texts})
	}
	for i, e := range f.Influencers {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: influencer %d has no id", ErrInvalidCatalogue, i)
		}
		texts := make(map[attribute.Partition]string, len(e.Attributes))
		for name, text := range e.Attributes {
			p, err := attribute.ParsePartition(name)
			if err != nil {
				return nil, fmt.Errorf("%w: influencer %q: %w", ErrInvalidCatalogue, id, err)
			}
			texts[p] = text
		}
		c.Influencers = append(c.Influencers, model.InfluencerProfile{ID: id, Texts: texts})
	}
	return c, nil
}

// Target receives catalogue records. service.Service satisfies it.
type Target interface {
	UpsertBrand(ctx context.Context, name string, texts attribute.Texts) (model.Brand, error)
	SubmitInfluencer(ctx context.Context, p model.InfluencerProfile) (jobID string, duplicate bool, err error)
}

// Summary counts the outcome of a Preload.
type Summary struct {
	Brands      int
	Influencers int
	Duplicates  int
	Failed      int
}

// Preload writes every brand and submits every influencer of c to t.
// Individual failures are logged and counted; the first one is returned after
// all records were attempted. A cancelled ctx stops early.
func Preload(ctx context.Context, t Target, c *Catalogue, log logger.Logger) (Summary, error) {
	if log == nil {
		log = logger.NamedOrNop("catalogue")
	}
	var (
		sum   Summary
		first error
	)
	fail := func(err error) {
		sum.Failed++
		if first == nil {
			first = err
		}
	}

	for _, b := range c.Brands {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if _, err := t.UpsertBrand(ctx, b.Name, b.Attributes); err != nil {
			log.Warn(ctx, "catalogue brand rejected", logger.String("brand", b.Name), logger.Error(err))
			fail(fmt.Errorf("brand %q: %w", b.Name, err))
			continue
		}
		sum.Brands++
	}
	for _, p := range c.Influencers {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		_, dup, err := t.SubmitInfluencer(ctx, p)
		switch {
		case err != nil:
			log.Warn(ctx, "catalogue influencer rejected", logger.String("influencer", p.ID), logger.Error(err))
			fail(fmt.Errorf("influencer %q: %w", p.ID, err))
		case dup:
			sum.Duplicates++
		default:
			sum.Influencers++
		}
	}

	log.Info(ctx, "catalogue preloaded",
		logger.Int("brands", sum.Brands),
		logger.Int("influencers", sum.Influencers),
		logger.Int("duplicates", sum.Duplicates),
		logger.Int("failed", sum.Failed))
	return sum, first
}
