package scoring_test

import (
	"testing"

	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/model"
	scoring "github.com/okian/brandmatch/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func raw(attr attribute.Key, pairs ...any) []model.RawMatch {
	out := make([]model.RawMatch, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, model.RawMatch{CandidateID: pairs[i].(string), Attribute: attr, Score: pairs[i+1].(float64)})
	}
	return out
}

func scores(in []model.NormalizedScore) map[string]float64 {
	out := make(map[string]float64, len(in))
	for _, s := range in {
		out[s.CandidateID] = s.Score
	}
	return out
}

func TestNormalizer_Normalize(t *testing.T) {
	Convey("Given a default normalizer", t, func() {
		n := scoring.NewNormalizer()

		Convey("When normalizing positive scores", func() {
			out := n.Normalize(raw(attribute.Vision, "c1", 0.8, "c2", 0.4))

			Convey("Then the best match reaches the ceiling and others scale linearly", func() {
				So(scores(out), ShouldResemble, map[string]float64{"c1": 10.0, "c2": 5.0})
				So(out[0].Attribute, ShouldEqual, attribute.Vision)
			})
		})

		Convey("When every score is non-positive", func() {
			out := n.Normalize(raw(attribute.Vision, "c1", -0.1, "c2", -0.3))

			Convey("Then every normalized score is zero", func() {
				So(scores(out), ShouldResemble, map[string]float64{"c1": 0.0, "c2": 0.0})
			})
		})

		Convey("When the best score is exactly zero", func() {
			out := n.Normalize(raw(attribute.Vision, "c1", 0.0, "c2", -0.5))
			So(scores(out), ShouldResemble, map[string]float64{"c1": 0.0, "c2": 0.0})
		})

		Convey("When the input is empty", func() {
			out := n.Normalize(nil)
			So(out, ShouldNotBeNil)
			So(out, ShouldBeEmpty)
		})

		Convey("When results need rounding", func() {
			out := n.Normalize(raw(attribute.Positioning, "a", 0.9, "b", 0.3, "c", 0.61))

			Convey("Then scores are rounded to two decimals", func() {
				So(scores(out), ShouldResemble, map[string]float64{"a": 10.0, "b": 3.33, "c": 6.78})
			})
		})

		Convey("When a negative score accompanies a positive max", func() {
			out := n.Normalize(raw(attribute.Vision, "a", 0.5, "b", -0.25))

			Convey("Then it is clamped into the bound", func() {
				So(scores(out)["b"], ShouldEqual, 0.0)
			})
		})

		Convey("Then every score stays within [0, ceiling]", func() {
			out := n.Normalize(raw(attribute.Vision, "a", 0.99, "b", 0.01, "c", 0.5, "d", 0.98999))
			for _, s := range out {
				So(s.Score, ShouldBeBetweenOrEqual, 0, n.Ceiling())
			}
		})
	})

	Convey("Given a configured normalizer", t, func() {
		n := scoring.NewNormalizer(scoring.WithCeiling(100), scoring.WithPrecision(0))

		Convey("Then the ceiling and precision apply", func() {
			out := n.Normalize(raw(attribute.Vision, "a", 0.9, "b", 0.3))
			So(scores(out), ShouldResemble, map[string]float64{"a": 100.0, "b": 33.0})
		})

		Convey("Then invalid options are ignored", func() {
			d := scoring.NewNormalizer(scoring.WithCeiling(-1), scoring.WithPrecision(-3))
			So(d.Ceiling(), ShouldEqual, scoring.DefaultCeiling)
			So(d.Precision(), ShouldEqual, scoring.DefaultPrecision)
		})
	})
}

func TestRound(t *testing.T) {
	Convey("Given values to round", t, func() {
		So(scoring.Round(3.14159, 2), ShouldEqual, 3.14)
		So(scoring.Round(2.675, 1), ShouldEqual, 2.7)
		So(scoring.Round(-1.005, 0), ShouldEqual, -1.0)
		So(scoring.Round(19.999, 2), ShouldEqual, 20.0)
	})
}
