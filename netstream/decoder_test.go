// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package netstream

import (
	"encoding/json"
	"math"

	"github.com/danjacques/gorope/support/bitreader"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Session", func() {
	const carDefault = "Archetypes.Car.Car_Default"

	var (
		d *Decoder
		s *stream
	)

	BeforeEach(func() {
		d = &Decoder{
			Objects: testObjects,
			Mapper:  newTestMapper(),
		}
		s = &stream{}
	})

	decodeAll := func() ([]*Frame, *bitreader.R, error) {
		r := bitreader.New(s.Bytes())
		frames, err := d.NewSession().DecodeFrames(r, 0)
		return frames, r, err
	}

	Context("spawning actors", func() {
		It("decodes position and rotation for a ball, and neither for a plain object", func() {
			s.frame(1.0, 0.03)
			s.spawn(1, objBall).vector(10, -20, 93)
			s.Bit(true).Uint8(64).Bit(false).Bit(true).Uint8(128)
			s.spawn(2, objCoreObject)
			s.endFrame()

			frames, r, err := decodeAll()
			Expect(err).ToNot(HaveOccurred())
			Expect(frames).To(HaveLen(1))
			Expect(r.Pos()).To(Equal(s.Len()))

			f := frames[0]
			Expect(f.Actors.Keys()).To(Equal([]string{"1n_Ball_Default", "2n_Object"}))

			ball, _ := f.Actors.Get("1n_Ball_Default")
			Expect(ball.Kind).To(Equal(EventSpawn))
			Expect(ball.Spawn.ClassName).To(Equal("TAGame.Ball_TA"))
			Expect(ball.Spawn.Position).To(Equal(&Vector{X: 10, Y: -20, Z: 93}))
			Expect(ball.Spawn.Rotation).ToNot(BeNil())
			Expect(*ball.Spawn.Rotation.Pitch).To(Equal(uint8(64)))
			Expect(ball.Spawn.Rotation.Yaw).To(BeNil())
			Expect(*ball.Spawn.Rotation.Roll).To(Equal(uint8(128)))

			obj, _ := f.Actors.Get("2n_Object")
			Expect(obj.Spawn.ClassName).To(Equal("Core.Object"))
			Expect(obj.Spawn.Position).To(BeNil())
			Expect(obj.Spawn.Rotation).To(BeNil())
		})

		It("expands short-form class names into the game namespace", func() {
			s.frame(1.0, 0.03)
			s.spawn(3, objCrowd)
			s.endFrame()

			frames, _, err := decodeAll()
			Expect(err).ToNot(HaveOccurred())

			e, ok := frames[0].Actors.Get("3n_CrowdActor_TA_1")
			Expect(ok).To(BeTrue())
			Expect(e.Spawn.ClassName).To(Equal("TAGame.CrowdActor_TA"))
			Expect(e.Spawn.Position).To(BeNil())
		})

		It("decodes position without rotation for other classes", func() {
			d.Mapper.(*testMapper).classes[carDefault] = "TAGame.Team_Soccar_TA"

			s.frame(1.0, 0.03)
			s.spawn(4, objCarDefault).vector(1, 2, 3)
			s.endFrame()

			frames, r, err := decodeAll()
			Expect(err).ToNot(HaveOccurred())
			Expect(r.Pos()).To(Equal(s.Len()))

			e, _ := frames[0].Actors.Get("4n_Car_Default")
			Expect(e.Spawn.Position).ToNot(BeNil())
			Expect(e.Spawn.Rotation).To(BeNil())
		})

		It("keeps the spawn flag as read", func() {
			s.frame(1.0, 0.03)
			s.Bit(true).BoundedInt(5, MaxActorID).Bit(true).Bit(true).Bit(true).Uint32(objCoreObject)
			s.endFrame()

			frames, _, err := decodeAll()
			Expect(err).ToNot(HaveOccurred())

			e, _ := frames[0].Actors.Get("5n_Object")
			Expect(e.Spawn.Flag).To(BeTrue())
		})

		It("fails with an IndexError for an archetype outside of the object table", func() {
			s.frame(1.0, 0.03)
			s.spawn(1, 99)

			_, _, err := decodeAll()
			var ie *IndexError
			Expect(errors.As(err, &ie)).To(BeTrue())
			Expect(ie.Index).To(Equal(uint32(99)))
			Expect(ie.Len).To(Equal(len(testObjects)))
		})
	})

	Context("updating actors", func() {
		It("resolves the archetype registered by an earlier frame", func() {
			s.frame(1.0, 0.03)
			s.spawn(7, objCarClass).vector(0, 0, 0).Bit(false).Bit(false).Bit(false)
			s.endFrame()

			s.frame(1.03, 0.03)
			s.update(7)
			s.property("TAGame.Car_TA", 0).Uint8(255)
			s.property("TAGame.Car_TA", 3).String("Castaño")
			s.endProperties()
			s.endFrame()

			frames, r, err := decodeAll()
			Expect(err).ToNot(HaveOccurred())
			Expect(frames).To(HaveLen(2))
			Expect(r.Pos()).To(Equal(s.Len()))

			e, ok := frames[1].Actors.Get("7e_Car_TA")
			Expect(ok).To(BeTrue())
			Expect(e.Kind).To(Equal(EventUpdate))
			Expect(e.HasArchetype).To(BeTrue())
			Expect(e.Archetype).To(Equal("TAGame.Car_TA"))

			Expect(e.Fields.Names()).To(Equal([]string{
				"TAGame.Vehicle_TA:ReplicatedThrottle",
				"Engine.PlayerReplicationInfo:PlayerName",
			}))
			v, _ := e.Fields.Get("TAGame.Vehicle_TA:ReplicatedThrottle")
			Expect(v).To(Equal(uint8(255)))
			v, _ = e.Fields.Get("Engine.PlayerReplicationInfo:PlayerName")
			Expect(v).To(Equal("Castaño"))
		})

		It("keeps the last value of a repeated property", func() {
			s.frame(1.0, 0.03)
			s.spawn(7, objCarClass).vector(0, 0, 0).Bit(false).Bit(false).Bit(false)
			s.update(7)
			s.property("TAGame.Car_TA", 0).Uint8(1)
			s.property("TAGame.Car_TA", 0).Uint8(2)
			s.endProperties()
			s.endFrame()

			frames, _, err := decodeAll()
			Expect(err).ToNot(HaveOccurred())

			e, _ := frames[0].Actors.Get("7e_Car_TA")
			Expect(e.Fields.Len()).To(Equal(1))
			v, _ := e.Fields.Get("TAGame.Vehicle_TA:ReplicatedThrottle")
			Expect(v).To(Equal(uint8(2)))
		})

		It("fails with UnknownActorError for an actor that was never spawned", func() {
			s.frame(1.0, 0.03)
			start := s.Len()
			s.update(12)
			s.endProperties()
			s.endFrame()

			_, _, err := decodeAll()
			Expect(err).To(BeAssignableToTypeOf(&UnknownActorError{}))
			uae := err.(*UnknownActorError)
			Expect(uae.ActorID).To(Equal(ActorID(12)))
			Expect(uae.BitOffset).To(Equal(start))
		})

		It("reports codec failures with the fields decoded so far", func() {
			s.frame(1.0, 0.03)
			s.spawn(7, objCarDefault).vector(0, 0, 0).Bit(false).Bit(false).Bit(false)
			s.endFrame()

			s.frame(1.03, 0.03)
			s.update(7)
			s.property(carDefault, 0).Uint8(100)
			s.property(carDefault, 2).Uint32(0)
			s.endProperties()
			s.endFrame()

			frames, _, err := decodeAll()
			Expect(frames).To(HaveLen(1))
			Expect(err).To(BeAssignableToTypeOf(&PropertyError{}))

			pe := err.(*PropertyError)
			Expect(pe.ActorID).To(Equal(ActorID(7)))
			Expect(pe.Archetype).To(Equal(carDefault))
			Expect(pe.Property).To(Equal("TAGame.Mystery_TA:Unknown"))
			Expect(pe.Partial.Names()).To(Equal([]string{"TAGame.Vehicle_TA:ReplicatedThrottle"}))
			Expect(errors.Cause(err)).To(Equal(ErrNoCodec))
		})
	})

	Context("deleting actors", func() {
		It("removes the actor from the registry and records its archetype", func() {
			s.frame(1.0, 0.03)
			s.spawn(9, objCoreObject)
			s.endFrame()

			s.frame(1.03, 0.03)
			s.remove(9)
			s.endFrame()

			r := bitreader.New(s.Bytes())
			sess := d.NewSession()

			f, err := sess.DecodeFrame(r)
			Expect(err).ToNot(HaveOccurred())
			Expect(f.Actors.Keys()).To(Equal([]string{"9n_Object"}))
			archetype, ok := sess.Registry().Lookup(9)
			Expect(ok).To(BeTrue())
			Expect(archetype).To(Equal("Core.Object"))

			f, err = sess.DecodeFrame(r)
			Expect(err).ToNot(HaveOccurred())
			e, ok := f.Actors.Get("9d_Object")
			Expect(ok).To(BeTrue())
			Expect(e.Kind).To(Equal(EventDelete))
			Expect(e.ChannelOpen).To(BeFalse())
			Expect(e.Archetype).To(Equal("Core.Object"))

			_, ok = sess.Registry().Lookup(9)
			Expect(ok).To(BeFalse())
			Expect(sess.Registry().Len()).To(BeZero())
			Expect(sess.Frames()).To(Equal(2))
		})

		It("drops deletes for actors that were never spawned", func() {
			s.frame(1.0, 0.03)
			s.remove(42)
			s.spawn(1, objCoreObject)
			s.endFrame()

			before := testutil.ToFloat64(orphanDeletes)
			frames, _, err := decodeAll()
			Expect(err).ToNot(HaveOccurred())
			Expect(frames[0].Actors.Keys()).To(Equal([]string{"1n_Object"}))
			Expect(testutil.ToFloat64(orphanDeletes)).To(Equal(before + 1))
		})

		It("allows actor IDs to be reused after deletion", func() {
			s.frame(1.0, 0.03)
			s.spawn(3, objCoreObject)
			s.remove(3)
			s.spawn(3, objCrowd)
			s.endFrame()

			frames, _, err := decodeAll()
			Expect(err).ToNot(HaveOccurred())
			Expect(frames[0].Actors.Keys()).To(Equal([]string{"3n_Object", "3d_Object", "3n_CrowdActor_TA_1"}))
		})

		It("lists live actors in ascending order", func() {
			s.frame(1.0, 0.03)
			s.spawn(12, objCoreObject)
			s.spawn(4, objCoreObject)
			s.spawn(7, objCoreObject)
			s.remove(12)
			s.endFrame()

			before := testutil.ToFloat64(eventsDecoded.WithLabelValues(EventSpawn.String()))
			sess := d.NewSession()
			_, err := sess.DecodeFrame(bitreader.New(s.Bytes()))
			Expect(err).ToNot(HaveOccurred())
			Expect(sess.Registry().IDs()).To(Equal([]ActorID{4, 7}))
			Expect(testutil.ToFloat64(eventsDecoded.WithLabelValues(EventSpawn.String()))).To(Equal(before + 3))
		})
	})

	Context("validating timestamps", func() {
		for _, tc := range []struct {
			name           string
			current, delta float32
		}{
			{"a zero current time", 0, 0.03},
			{"a tiny delta time", 1.0, 0.0009},
			{"a negative current time", -1, 0.03},
			{"NaN", float32(math.NaN()), 0.03},
		} {
			tc := tc
			It("rejects "+tc.name, func() {
				s.frame(tc.current, tc.delta)
				s.Uint32(0xCAFEF00D).Uint32(0x12345678)

				r := bitreader.New(s.Bytes())
				_, err := d.NewSession().DecodeFrame(r)
				Expect(err).To(BeAssignableToTypeOf(&FrameError{}))

				fe := err.(*FrameError)
				Expect(fe.BitOffset).To(BeZero())
				Expect(fe.NextBits.Len).To(Equal(uint(64)))
				Expect(fe.NextBits.Value).To(Equal(uint64(0x12345678CAFEF00D)))
				Expect(r.Pos()).To(Equal(uint64(64)))
			})
		}

		It("reports fewer next bits near the end of the stream", func() {
			s.frame(0, 0).Uint8(0xAB)

			_, err := d.NewSession().DecodeFrame(bitreader.New(s.Bytes()))
			Expect(err).To(BeAssignableToTypeOf(&FrameError{}))
			Expect(err.(*FrameError).NextBits.Len).To(Equal(uint(8)))
			Expect(err.Error()).To(ContainSubstring("0xAB"))
		})

		It("returns the frames decoded before the failure", func() {
			s.frame(1.0, 0.03).endFrame()
			s.frame(1.03, 0.03).endFrame()
			s.frame(0, 0).Uint64(0)

			frames, _, err := decodeAll()
			Expect(frames).To(HaveLen(2))
			Expect(err).To(BeAssignableToTypeOf(&FrameError{}))
			Expect(err.(*FrameError).Frame).To(Equal(2))
		})
	})

	Context("DecodeFrames", func() {
		BeforeEach(func() {
			s.frame(1.0, 0.03).endFrame()
			s.frame(1.03, 0.03).endFrame()
			s.frame(1.06, 0.03).endFrame()
		})

		It("decodes a fixed number of frames", func() {
			r := bitreader.New(s.Bytes())
			frames, err := d.NewSession().DecodeFrames(r, 2)
			Expect(err).ToNot(HaveOccurred())
			Expect(frames).To(HaveLen(2))
			Expect(frames[1].CurrentTime).To(Equal(float32(1.03)))
		})

		It("stops when too few bits remain for another frame", func() {
			frames, _, err := decodeAll()
			Expect(err).ToNot(HaveOccurred())
			Expect(frames).To(HaveLen(3))
		})
	})

	It("is deterministic across sessions", func() {
		s.frame(1.0, 0.03)
		s.spawn(7, objCarClass).vector(5, 6, 7).Bit(true).Uint8(1).Bit(true).Uint8(2).Bit(true).Uint8(3)
		s.endFrame()
		s.frame(1.03, 0.03)
		s.update(7)
		s.property("TAGame.Car_TA", 0).Uint8(9)
		s.endProperties()
		s.remove(7)
		s.endFrame()

		a, _, err := decodeAll()
		Expect(err).ToNot(HaveOccurred())
		b, _, err := decodeAll()
		Expect(err).ToNot(HaveOccurred())

		aj, err := json.Marshal(a)
		Expect(err).ToNot(HaveOccurred())
		bj, err := json.Marshal(b)
		Expect(err).ToNot(HaveOccurred())
		Expect(aj).To(MatchJSON(bj))
		Expect(aj).To(Equal(bj))
	})

	It("does not share registry state between sessions", func() {
		s.frame(1.0, 0.03)
		s.spawn(7, objCarClass).vector(0, 0, 0).Bit(false).Bit(false).Bit(false)
		s.endFrame()

		_, _, err := decodeAll()
		Expect(err).ToNot(HaveOccurred())

		s = &stream{}
		s.frame(1.0, 0.03)
		s.update(7)
		s.endProperties()
		s.endFrame()

		_, _, err = decodeAll()
		Expect(err).To(BeAssignableToTypeOf(&UnknownActorError{}))
	})
})

var _ = Describe("Event JSON", func() {
	It("renders spawns, updates and deletes", func() {
		pos := Vector{X: 1, Y: 2, Z: 3}
		spawn := &Event{
			StartBit:     64,
			ActorID:      7,
			Archetype:    "TAGame.Car_TA",
			HasArchetype: true,
			ChannelOpen:  true,
			Kind:         EventSpawn,
			Spawn: &SpawnData{
				TypeID:    8,
				TypeName:  "TAGame.Car_TA",
				ClassName: "TAGame.Car_TA",
				Position:  &pos,
			},
		}
		Expect(json.Marshal(spawn)).To(MatchJSON(`{
			"startpos": 64, "actor_id": 7, "actor_type": "TAGame.Car_TA", "new": true, "open": true,
			"data": {"id": 7, "state": "new", "flag": false, "type_id": 8,
				"type_name": "TAGame.Car_TA", "class_name": "TAGame.Car_TA", "position": [1, 2, 3]}
		}`))

		fields := NewFields()
		fields.Set("TAGame.Vehicle_TA:ReplicatedThrottle", uint8(3))
		update := &Event{
			StartBit:     100,
			ActorID:      7,
			Archetype:    "TAGame.Car_TA",
			HasArchetype: true,
			ChannelOpen:  true,
			Kind:         EventUpdate,
			Fields:       fields,
		}
		Expect(json.Marshal(update)).To(MatchJSON(`{
			"startpos": 100, "actor_id": 7, "actor_type": "TAGame.Car_TA", "new": false, "open": true,
			"data": {"id": 7, "state": "existing", "TAGame.Vehicle_TA:ReplicatedThrottle": 3}
		}`))

		del := &Event{
			StartBit:     200,
			ActorID:      7,
			Archetype:    "TAGame.Car_TA",
			HasArchetype: true,
			Kind:         EventDelete,
		}
		Expect(json.Marshal(del)).To(MatchJSON(`{
			"startpos": 200, "actor_id": 7, "actor_type": "TAGame.Car_TA", "open": false
		}`))
		Expect(del.Key()).To(Equal("7d_Car_TA"))
	})

	It("renders non-finite float fields as strings", func() {
		nan := float32(math.NaN())
		inf := float32(math.Inf(1))

		fields := NewFields()
		fields.Set("TAGame.Ball_TA:ReplicatedBallScale", nan)
		fields.Set("TAGame.PRI_TA:CameraSettings", CameraSettings{FOV: inf, Height: 100})
		fields.Set("TAGame.Ball_TA:ReplicatedAddedCarBounceScale", FloatVector{X: 1, Y: -inf, Z: nan})

		actors := NewActors()
		actors.Add(&Event{
			StartBit:     100,
			ActorID:      3,
			Archetype:    "Archetypes.Ball.Ball_Default",
			HasArchetype: true,
			ChannelOpen:  true,
			Kind:         EventUpdate,
			Fields:       fields,
		})
		f := &Frame{CurrentTime: inf, DeltaTime: 0.5, Actors: actors}

		Expect(json.Marshal(f)).To(MatchJSON(`{
			"current": "Infinity", "delta": 0.5,
			"actors": {"3e_Ball_Default": {
				"startpos": 100, "actor_id": 3, "actor_type": "Archetypes.Ball.Ball_Default",
				"new": false, "open": true,
				"data": {
					"id": 3, "state": "existing",
					"TAGame.Ball_TA:ReplicatedBallScale": "NaN",
					"TAGame.PRI_TA:CameraSettings": {"fov": "Infinity", "height": 100, "pitch": 0,
						"distance": 0, "stiffness": 0, "swivel_speed": 0},
					"TAGame.Ball_TA:ReplicatedAddedCarBounceScale": [1, "-Infinity", "NaN"]
				}
			}}
		}`))
	})
})
