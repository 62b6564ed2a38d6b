package attribute

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestPartitionMapping(t *testing.T) {
	Convey("Given the attribute keys", t, func() {
		Convey("Then every key maps to exactly one distinct partition", func() {
			seen := map[Partition]bool{}
			for _, k := range All() {
				p := k.Partition()
				So(p, ShouldNotBeEmpty)
				So(seen[p], ShouldBeFalse)
				seen[p] = true

				back, ok := p.Key()
				So(ok, ShouldBeTrue)
				So(back, ShouldEqual, k)
			}
			So(len(seen), ShouldEqual, 5)
		})

		Convey("Then the partitions use the index namespaces", func() {
			So(TypeOfProduct.Partition(), ShouldEqual, Partition("Type_of_content"))
			So(TargetGroup.Partition(), ShouldEqual, Partition("target_Audience"))
			So(BrandPersonality.Partition(), ShouldEqual, Partition("personality"))
			So(Partitions(), ShouldResemble, []Partition{"Type_of_content", "target_Audience", "positioning", "personality", "vision"})
		})

		Convey("Then All returns a copy", func() {
			a := All()
			a[0] = "mutated"
			So(All()[0], ShouldEqual, TypeOfProduct)
		})
	})
}

func TestParse(t *testing.T) {
	Convey("Given attribute names", t, func() {
		Convey("When parsing a known name with odd casing", func() {
			k, err := Parse("  Vision ")
			So(err, ShouldBeNil)
			So(k, ShouldEqual, Vision)
		})

		Convey("When parsing an unknown name", func() {
			_, err := Parse("colour")
			So(errors.Is(err, ErrUnknownKey), ShouldBeTrue)
		})

		Convey("When parsing partitions by either name", func() {
			p, err := ParsePartition("type_of_content")
			So(err, ShouldBeNil)
			So(p, ShouldEqual, Partition("Type_of_content"))

			p, err = ParsePartition("brand_personality")
			So(err, ShouldBeNil)
			So(p, ShouldEqual, Partition("personality"))

			_, err = ParsePartition("nope")
			So(err, ShouldNotBeNil)
		})

		Convey("When parsing wire texts", func() {
			texts, err := ParseTexts(map[string]string{"vision": "a", "positioning": "b"})
			So(err, ShouldBeNil)
			So(texts.Keys(), ShouldResemble, []Key{Positioning, Vision})
			So(texts.Wire(), ShouldResemble, map[string]string{"vision": "a", "positioning": "b"})

			_, err = ParseTexts(map[string]string{"bogus": "x"})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestNormalize(t *testing.T) {
	Convey("Given raw attribute text", t, func() {
		Convey("Then compatibility forms are folded and controls stripped", func() {
			So(Normalize("  ﬁtness\x00 apparel\u0007 "), ShouldEqual, "fitness apparel")
			So(Normalize("line one\nline two"), ShouldEqual, "line one\nline two")
			So(Normalize("\t \n"), ShouldEqual, "")
		})

		Convey("Then Clean drops empty and unknown entries", func() {
			texts := Texts{
				Vision:      "  empower athletes ",
				Positioning: "   ",
				Key("other"): "ignored",
			}
			cleaned := texts.Clean()
			So(cleaned, ShouldResemble, Texts{Vision: "empower athletes"})
			So(texts[Vision], ShouldEqual, "  empower athletes ")
		})
	})
}
