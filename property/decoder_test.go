// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package property

import (
	"github.com/danjacques/gorope/support/bitreader"
	"github.com/danjacques/gorope/support/bitreader/bittest"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

// header writes the key, tag and declared size of one property.
func header(w *bittest.W, key, tag string, size uint64) *bittest.W {
	return w.String(key).String(tag).Uint64(size)
}

func terminate(w *bittest.W) *bittest.W { return w.String(Terminator) }

var _ = Describe("Decoder", func() {
	var d Decoder

	BeforeEach(func() {
		d = Decoder{}
	})

	decode := func(w *bittest.W) (*Map, *bitreader.R, error) {
		r := bitreader.New(w.Bytes())
		m, err := d.DecodeMap(r)
		return m, r, err
	}

	It("decodes a simple header and stops exactly after the terminator", func() {
		var w bittest.W
		header(&w, "TeamSize", "IntProperty", 4).Uint32(3)
		header(&w, "bSoloStandard", "BoolProperty", 0).Uint8(0)
		terminate(&w)
		end := w.Len()

		// Trailing data must not be consumed.
		w.Uint32(0xDEADBEEF)

		m, r, err := decode(&w)
		Expect(err).ToNot(HaveOccurred())
		Expect(m.Keys()).To(Equal([]string{"TeamSize", "bSoloStandard"}))

		v, ok := m.Int("TeamSize")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(uint32(3)))

		b, _ := m.Get("bSoloStandard")
		Expect(b.Kind()).To(Equal(KindBool))
		Expect(b.Interface()).To(Equal(false))

		Expect(r.Pos()).To(Equal(end))
	})

	It("decodes an empty tree", func() {
		var w bittest.W
		terminate(&w)

		m, r, err := decode(&w)
		Expect(err).ToNot(HaveOccurred())
		Expect(m.Len()).To(BeZero())
		Expect(r.Pos()).To(Equal(w.Len()))
	})

	DescribeTable("scalar property kinds",
		func(tag string, write func(*bittest.W), expected Value) {
			var w bittest.W
			header(&w, "Key", tag, 0)
			write(&w)
			terminate(&w)

			m, _, err := decode(&w)
			Expect(err).ToNot(HaveOccurred())

			v, ok := m.Get("Key")
			Expect(ok).To(BeTrue())
			Expect(v.Kind().String()).To(Equal(tag))
			Expect(v.Equal(expected)).To(BeTrue(), "got %s, want %s", v, expected)
		},

		Entry("IntProperty", "IntProperty",
			func(w *bittest.W) { w.Uint32(0xFFFFFFFF) }, IntValue(0xFFFFFFFF)),
		Entry("StrProperty", "StrProperty",
			func(w *bittest.W) { w.String("Castaño") }, StrValue("Castaño")),
		Entry("NameProperty", "NameProperty",
			func(w *bittest.W) { w.String("Stadium_P") }, NameValue("Stadium_P")),
		Entry("FloatProperty", "FloatProperty",
			func(w *bittest.W) { w.Float32(-2.25) }, FloatValue(-2.25)),
		Entry("ByteProperty", "ByteProperty",
			func(w *bittest.W) { w.String("OnlinePlatform").String("OnlinePlatform_Steam") },
			ByteValue("OnlinePlatform", "OnlinePlatform_Steam")),
		Entry("QWordProperty", "QWordProperty",
			func(w *bittest.W) { w.Int64(-76561197960287930) }, QWordValue(-76561197960287930)),
		Entry("BoolProperty (true)", "BoolProperty",
			func(w *bittest.W) { w.Uint8(1) }, BoolValue(true)),
		Entry("BoolProperty (non-one byte)", "BoolProperty",
			func(w *bittest.W) { w.Uint8(2) }, BoolValue(false)),
	)

	Context("ArrayProperty", func() {
		It("decodes each element as an independently terminated tree", func() {
			var w bittest.W
			header(&w, "Goals", "ArrayProperty", 0).Uint32(2)
			header(&w, "PlayerName", "StrProperty", 0).String("Alice")
			header(&w, "frame", "IntProperty", 4).Uint32(100)
			terminate(&w)
			header(&w, "PlayerName", "StrProperty", 0).String("Bob")
			terminate(&w)
			header(&w, "After", "IntProperty", 4).Uint32(1)
			terminate(&w)

			m, r, err := decode(&w)
			Expect(err).ToNot(HaveOccurred())
			Expect(m.Keys()).To(Equal([]string{"Goals", "After"}))
			Expect(r.Pos()).To(Equal(w.Len()))

			v, _ := m.Get("Goals")
			elems, ok := v.Array()
			Expect(ok).To(BeTrue())
			Expect(elems).To(HaveLen(2))
			Expect(elems[0].Keys()).To(Equal([]string{"PlayerName", "frame"}))
			Expect(elems[1].Keys()).To(Equal([]string{"PlayerName"}))

			name, _ := elems[1].Str("PlayerName")
			Expect(name).To(Equal("Bob"))
		})

		It("decodes an empty array", func() {
			var w bittest.W
			header(&w, "Empty", "ArrayProperty", 0).Uint32(0)
			terminate(&w)

			m, _, err := decode(&w)
			Expect(err).ToNot(HaveOccurred())

			v, _ := m.Get("Empty")
			elems, ok := v.Array()
			Expect(ok).To(BeTrue())
			Expect(elems).To(BeEmpty())
		})

		It("decodes nested arrays", func() {
			var w bittest.W
			header(&w, "Outer", "ArrayProperty", 0).Uint32(1)
			header(&w, "Inner", "ArrayProperty", 0).Uint32(2)
			header(&w, "A", "IntProperty", 4).Uint32(1)
			terminate(&w)
			header(&w, "A", "IntProperty", 4).Uint32(2)
			terminate(&w)
			header(&w, "Tail", "NameProperty", 0).String("x")
			terminate(&w)
			terminate(&w)

			m, _, err := decode(&w)
			Expect(err).ToNot(HaveOccurred())

			outer, _ := m.Get("Outer")
			oe, _ := outer.Array()
			Expect(oe).To(HaveLen(1))
			Expect(oe[0].Keys()).To(Equal([]string{"Inner", "Tail"}))

			inner, _ := oe[0].Get("Inner")
			ie, _ := inner.Array()
			Expect(ie).To(HaveLen(2))
			a, _ := ie[1].Int("A")
			Expect(a).To(Equal(uint32(2)))
		})

		It("enforces the maximum nesting depth", func() {
			d.MaxDepth = 2

			var w bittest.W
			header(&w, "L1", "ArrayProperty", 0).Uint32(1)
			header(&w, "L2", "ArrayProperty", 0).Uint32(1)
			terminate(&w)
			terminate(&w)
			terminate(&w)

			_, _, err := decode(&w)
			Expect(err).To(BeAssignableToTypeOf(&DepthError{}))
			Expect(err.(*DepthError).Key).To(Equal("L2"))
		})

		It("handles deep nesting without recursion", func() {
			const depth = 1000
			d.MaxDepth = depth + 1

			var w bittest.W
			for i := 0; i < depth; i++ {
				header(&w, "Nested", "ArrayProperty", 0).Uint32(1)
			}
			for i := 0; i <= depth; i++ {
				terminate(&w)
			}

			m, r, err := decode(&w)
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Pos()).To(Equal(w.Len()))

			levels := 0
			for m.Len() > 0 {
				v, _ := m.Get("Nested")
				elems, _ := v.Array()
				Expect(elems).To(HaveLen(1))
				m = elems[0]
				levels++
			}
			Expect(levels).To(Equal(depth))
		})

		It("rejects element counts that cannot fit in the remaining data", func() {
			var w bittest.W
			header(&w, "Huge", "ArrayProperty", 0).Uint32(0xFFFFFFFF)
			terminate(&w)

			_, _, err := decode(&w)
			Expect(errors.Cause(err)).To(Equal(ErrMalformedHeader))
		})
	})

	It("keeps the first position and last value of a duplicate key", func() {
		var w bittest.W
		header(&w, "A", "IntProperty", 4).Uint32(1)
		header(&w, "B", "IntProperty", 4).Uint32(2)
		header(&w, "A", "StrProperty", 0).String("again")
		terminate(&w)

		m, _, err := decode(&w)
		Expect(err).ToNot(HaveOccurred())
		Expect(m.Keys()).To(Equal([]string{"A", "B"}))

		s, ok := m.Str("A")
		Expect(ok).To(BeTrue())
		Expect(s).To(Equal("again"))
	})

	Context("with malformed input", func() {
		It("reports unknown type tags with their key and offset", func() {
			var w bittest.W
			header(&w, "Mystery", "StructProperty", 12)
			bit := w.Len()
			w.Uint32(0)

			_, _, err := decode(&w)
			Expect(err).To(BeAssignableToTypeOf(&UnknownTypeError{}))

			ute := err.(*UnknownTypeError)
			Expect(ute.Key).To(Equal("Mystery"))
			Expect(ute.Type).To(Equal("StructProperty"))
			Expect(ute.BitOffset).To(Equal(bit))
		})

		It("returns ErrMalformedHeader when data runs out before the terminator", func() {
			var w bittest.W
			header(&w, "TeamSize", "IntProperty", 4).Uint32(3)

			_, _, err := decode(&w)
			Expect(errors.Cause(err)).To(Equal(ErrMalformedHeader))
		})

		It("returns ErrMalformedHeader for a truncated payload", func() {
			var w bittest.W
			header(&w, "Date", "StrProperty", 0).Int32(20).Raw('2', '0')

			_, _, err := decode(&w)
			Expect(errors.Cause(err)).To(Equal(ErrMalformedHeader))
		})

		It("returns ErrMalformedHeader for an empty buffer", func() {
			_, err := d.DecodeMap(bitreader.New(nil))
			Expect(errors.Cause(err)).To(Equal(ErrMalformedHeader))
		})
	})

	Context("in strict mode", func() {
		BeforeEach(func() {
			d.Strict = true
		})

		It("accepts matching declared sizes", func() {
			var w bittest.W
			header(&w, "TeamSize", "IntProperty", 4).Uint32(3)
			// "Map" + NUL with a 4-byte length prefix.
			header(&w, "MapName", "NameProperty", 8).String("Map")
			header(&w, "bSoloStandard", "BoolProperty", 0).Uint8(1)
			terminate(&w)

			_, _, err := decode(&w)
			Expect(err).ToNot(HaveOccurred())
		})

		It("rejects mismatched declared sizes", func() {
			var w bittest.W
			header(&w, "TeamSize", "IntProperty", 8).Uint32(3)
			terminate(&w)

			_, _, err := decode(&w)
			Expect(err).To(BeAssignableToTypeOf(&SizeMismatchError{}))

			sme := err.(*SizeMismatchError)
			Expect(sme.Declared).To(Equal(uint64(8)))
			Expect(sme.Consumed).To(Equal(uint64(4)))
		})
	})

	It("is deterministic", func() {
		var w bittest.W
		header(&w, "Goals", "ArrayProperty", 0).Uint32(1)
		header(&w, "PlayerName", "StrProperty", 0).String("Alice")
		terminate(&w)
		header(&w, "ReplayName", "StrProperty", 0).String("Ñandú")
		terminate(&w)

		a, _, err := decode(&w)
		Expect(err).ToNot(HaveOccurred())
		b, _, err := decode(&w)
		Expect(err).ToNot(HaveOccurred())
		Expect(a.Equal(b)).To(BeTrue())

		aj, err := a.MarshalJSON()
		Expect(err).ToNot(HaveOccurred())
		bj, err := b.MarshalJSON()
		Expect(err).ToNot(HaveOccurred())
		Expect(aj).To(Equal(bj))
	})
})
