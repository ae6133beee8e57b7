// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package replay

import (
	"io"

	"github.com/danjacques/gorope/support/bitreader/bittest"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ReadEnvelope", func() {
	var f *replayFile

	BeforeEach(func() {
		f = newReplayFile()
		f.intProp("TeamSize", 3)
	})

	It("locates the header after the marker", func() {
		data := f.bytes()
		env, err := ReadEnvelope(data)
		Expect(err).ToNot(HaveOccurred())
		Expect(env.Legacy).To(BeFalse())
		Expect(env.VersionMajor).To(Equal(uint32(868)))
		Expect(env.VersionMinor).To(Equal(uint32(12)))

		// Prelude, marker and the length-prefixed, NUL-terminated tag.
		Expect(env.HeaderStart).To(Equal(uint64(16+4+4+len(EngineTag)+1) * 8))
		Expect(env.BodyStart).To(Equal(int64(len(data))))
	})

	It("accepts files without the marker", func() {
		f.legacy = true
		env, err := ReadEnvelope(f.bytes())
		Expect(err).ToNot(HaveOccurred())
		Expect(env.Legacy).To(BeTrue())
		Expect(env.HeaderStart).To(Equal(uint64(16+4+len(EngineTag)+1) * 8))

		rp, err := Parse(f.bytes(), Options{})
		Expect(err).ToNot(HaveOccurred())
		Expect(headerInt(rp, "TeamSize")).To(Equal(uint32(3)))
	})

	It("rejects other engine tags", func() {
		f.tag = "TAGame.Replay_Other_TA"
		_, err := ReadEnvelope(f.bytes())
		Expect(err).To(BeAssignableToTypeOf(&EnvelopeError{}))
		Expect(err.(*EnvelopeError).Offset).To(Equal(int64(20)))
		Expect(err.Error()).To(ContainSubstring("Replay_Other_TA"))
	})

	It("rejects a truncated prelude", func() {
		_, err := ReadEnvelope([]byte{1, 2, 3})
		Expect(err).To(BeAssignableToTypeOf(&EnvelopeError{}))
	})

	It("rejects an undersized header", func() {
		var w bittest.W
		w.Uint32(4).Uint32(0).Uint32(868).Uint32(12).Uint32(0)
		_, err := ReadEnvelope(w.Bytes())
		Expect(err).To(BeAssignableToTypeOf(&EnvelopeError{}))
	})

	It("rejects a header size past the end of the file", func() {
		data := f.bytes()
		data[0] = 0xFF
		_, err := ReadEnvelope(data)
		Expect(err).To(BeAssignableToTypeOf(&EnvelopeError{}))
		Expect(errors.Cause(err)).To(Equal(io.ErrUnexpectedEOF))
		Expect(err.Error()).To(ContainSubstring("past the end"))

		_, err = Parse(data, Options{})
		Expect(err).To(BeAssignableToTypeOf(&EnvelopeError{}))
	})

	It("clamps the header region to the file", func() {
		// With no body, the region measured from the tag overruns the file.
		f.body = nil
		data := f.bytes()
		env, err := ReadEnvelope(data)
		Expect(err).ToNot(HaveOccurred())
		Expect(env.HeaderEnd).To(Equal(uint64(len(data)) * 8))

		rp, err := Parse(data, Options{})
		Expect(err).ToNot(HaveOccurred())
		Expect(headerInt(rp, "TeamSize")).To(Equal(uint32(3)))
	})
})
