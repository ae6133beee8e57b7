// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package netstream

import (
	"encoding/hex"
	"strings"

	"github.com/danjacques/gorope/support/bitreader"

	"github.com/pkg/errors"
)

// AttributeCodec decodes the value of one replicated property.
type AttributeCodec func(r *bitreader.R) (interface{}, error)

// Attributes maps replicated property names to their codecs.
type Attributes map[string]AttributeCodec

// ErrNoCodec is returned (wrapped) when a property has no registered codec.
var ErrNoCodec = errors.New("no codec registered for property")

// Register associates codec with each of names.
func (a Attributes) Register(codec AttributeCodec, names ...string) {
	for _, name := range names {
		a[name] = codec
	}
}

// Decode decodes the value of the named property.
func (a Attributes) Decode(name string, r *bitreader.R) (interface{}, error) {
	codec := a[name]
	if codec == nil {
		return nil, errors.Wrap(ErrNoCodec, name)
	}
	return codec(r)
}

// DefaultAttributes returns a new Attributes populated with codecs for the
// standard replicated properties.
func DefaultAttributes() Attributes {
	a := make(Attributes, 128)

	a.Register(readBool,
		"Engine.Actor:bBlockActors",
		"Engine.Actor:bCollideActors",
		"Engine.Actor:bHidden",
		"Engine.Actor:bTearOff",
		"Engine.GameReplicationInfo:bMatchIsOver",
		"Engine.PlayerReplicationInfo:bBot",
		"Engine.PlayerReplicationInfo:bIsSpectator",
		"Engine.PlayerReplicationInfo:bReadyToPlay",
		"Engine.PlayerReplicationInfo:bWaitingPlayer",
		"ProjectX.GRI_X:bGameStarted",
		"TAGame.CameraSettingsActor_TA:bUsingBehindView",
		"TAGame.CameraSettingsActor_TA:bUsingSecondaryCamera",
		"TAGame.CarComponent_Boost_TA:bNoBoost",
		"TAGame.CarComponent_Boost_TA:bUnlimitedBoost",
		"TAGame.GameEvent_Soccar_TA:bBallHasBeenHit",
		"TAGame.GameEvent_Soccar_TA:bOverTime",
		"TAGame.GameEvent_TA:bHasLeaveMatchPenalty",
		"TAGame.GameEvent_Team_TA:bDisableMutingOtherTeam",
		"TAGame.PRI_TA:bIsInSplitScreen",
		"TAGame.PRI_TA:bMatchMVP",
		"TAGame.PRI_TA:bOnlineLoadoutSet",
		"TAGame.PRI_TA:bReady",
		"TAGame.PRI_TA:bUsingBehindView",
		"TAGame.PRI_TA:bUsingSecondaryCamera",
		"TAGame.RBActor_TA:bFrozen",
		"TAGame.RBActor_TA:bReplayActor",
		"TAGame.Vehicle_TA:bDriving",
		"TAGame.Vehicle_TA:bReplicatedHandbrake",
	)

	a.Register(readInt,
		"Engine.PlayerReplicationInfo:PlayerID",
		"Engine.PlayerReplicationInfo:Score",
		"Engine.TeamInfo:Score",
		"ProjectX.GRI_X:ReplicatedGameMutatorIndex",
		"ProjectX.GRI_X:ReplicatedGamePlaylist",
		"TAGame.CrowdActor_TA:ReplicatedCountDownNumber",
		"TAGame.GameEvent_Soccar_TA:RoundNum",
		"TAGame.GameEvent_Soccar_TA:SecondsRemaining",
		"TAGame.GameEvent_TA:BotSkill",
		"TAGame.GameEvent_TA:ReplicatedGameStateTimeRemaining",
		"TAGame.GameEvent_Team_TA:MaxTeamSize",
		"TAGame.PRI_TA:MatchAssists",
		"TAGame.PRI_TA:MatchGoals",
		"TAGame.PRI_TA:MatchSaves",
		"TAGame.PRI_TA:MatchScore",
		"TAGame.PRI_TA:MatchShots",
		"TAGame.PRI_TA:Title",
		"TAGame.PRI_TA:TotalXP",
	)

	a.Register(readByte,
		"Engine.PlayerReplicationInfo:Ping",
		"TAGame.Ball_TA:HitTeamNum",
		"TAGame.CameraSettingsActor_TA:CameraPitch",
		"TAGame.CameraSettingsActor_TA:CameraYaw",
		"TAGame.CarComponent_Boost_TA:ReplicatedBoostAmount",
		"TAGame.CarComponent_TA:ReplicatedActive",
		"TAGame.GameEvent_Soccar_TA:ReplicatedScoredOnTeam",
		"TAGame.PRI_TA:CameraPitch",
		"TAGame.PRI_TA:CameraYaw",
		"TAGame.Vehicle_TA:ReplicatedSteer",
		"TAGame.Vehicle_TA:ReplicatedThrottle",
	)

	a.Register(readFloat,
		"Engine.Actor:DrawScale",
		"TAGame.Ball_TA:ReplicatedAddedCarBounceScale",
		"TAGame.Ball_TA:ReplicatedBallMaxLinearSpeedScale",
		"TAGame.Ball_TA:ReplicatedBallScale",
		"TAGame.Ball_TA:ReplicatedWorldBounceScale",
		"TAGame.CarComponent_Boost_TA:BoostModifier",
		"TAGame.CarComponent_Boost_TA:RechargeDelay",
		"TAGame.CarComponent_Boost_TA:RechargeRate",
		"TAGame.CarComponent_FlipCar_TA:FlipCarTime",
		"TAGame.CarComponent_TA:ReplicatedActivityTime",
		"TAGame.CrowdActor_TA:ModifiedNoise",
	)

	a.Register(readString,
		"Engine.GameReplicationInfo:ServerName",
		"Engine.PlayerReplicationInfo:PlayerName",
		"Engine.PlayerReplicationInfo:RemoteUserData",
		"ProjectX.GRI_X:ReplicatedServerRegion",
		"TAGame.GRI_TA:NewDedicatedServerIP",
		"TAGame.Team_TA:CustomTeamName",
	)

	a.Register(readQWord,
		"ProjectX.GRI_X:GameServerID",
	)

	a.Register(readFlaggedInt,
		"Engine.Actor:Owner",
		"Engine.GameReplicationInfo:GameClass",
		"Engine.Pawn:PlayerReplicationInfo",
		"Engine.PlayerReplicationInfo:Team",
		"TAGame.Ball_TA:GameEvent",
		"TAGame.CameraSettingsActor_TA:PRI",
		"TAGame.Car_TA:AttachedPickup",
		"TAGame.CarComponent_TA:Vehicle",
		"TAGame.CrowdActor_TA:GameEvent",
		"TAGame.CrowdActor_TA:ReplicatedOneShotSound",
		"TAGame.CrowdActor_TA:ReplicatedRoundCountDownNumber",
		"TAGame.CrowdManager_TA:GameEvent",
		"TAGame.CrowdManager_TA:ReplicatedGlobalOneShotSound",
		"TAGame.GameEvent_Soccar_TA:GameWinner",
		"TAGame.GameEvent_Soccar_TA:MatchWinner",
		"TAGame.GameEvent_Soccar_TA:MVP",
		"TAGame.GameEvent_Soccar_TA:SubRulesArchetype",
		"TAGame.GameEvent_TA:MatchTypeClass",
		"TAGame.PRI_TA:PersistentCamera",
		"TAGame.PRI_TA:ReplicatedGameEvent",
		"TAGame.Team_TA:GameEvent",
		"TAGame.Team_TA:LogoData",
	)

	a.Register(readVector,
		"TAGame.CarComponent_Dodge_TA:DodgeTorque",
	)

	a.Register(readUniqueID,
		"Engine.PlayerReplicationInfo:UniqueId",
	)
	a.Register(readPartyLeader,
		"TAGame.PRI_TA:PartyLeader",
	)
	a.Register(readRigidBodyState,
		"TAGame.RBActor_TA:ReplicatedRBState",
	)
	a.Register(readTeamPaint,
		"TAGame.Car_TA:TeamPaint",
	)
	a.Register(readLoadout,
		"TAGame.PRI_TA:ClientLoadout",
	)
	a.Register(readLoadouts,
		"TAGame.PRI_TA:ClientLoadouts",
	)
	a.Register(readCameraSettings,
		"TAGame.CameraSettingsActor_TA:ProfileSettings",
		"TAGame.PRI_TA:CameraSettings",
	)
	a.Register(readDemolish,
		"TAGame.Car_TA:ReplicatedDemolish",
	)
	a.Register(readExplosion,
		"TAGame.Ball_TA:ReplicatedExplosionData",
	)
	a.Register(readPickup,
		"TAGame.VehiclePickup_TA:ReplicatedPickupData",
	)
	a.Register(readReservation,
		"ProjectX.GRI_X:Reservations",
	)
	a.Register(readMusicStinger,
		"TAGame.GameEvent_Soccar_TA:ReplicatedMusicStinger",
	)

	return a
}

func readBool(r *bitreader.R) (interface{}, error)   { return r.ReadBit() }
func readInt(r *bitreader.R) (interface{}, error)    { return r.ReadInt32() }
func readByte(r *bitreader.R) (interface{}, error)   { return r.ReadUint8() }
func readFloat(r *bitreader.R) (interface{}, error)  { return r.ReadFloat32() }
func readString(r *bitreader.R) (interface{}, error) { return r.ReadString() }
func readQWord(r *bitreader.R) (interface{}, error)  { return r.ReadUint64() }
func readVector(r *bitreader.R) (interface{}, error) { return ReadVector(r) }

// FlaggedInt is an actor or object reference preceded by a flag bit.
type FlaggedInt struct {
	Flag bool  `json:"flag"`
	Int  int32 `json:"int"`
}

func readFlaggedInt(r *bitreader.R) (interface{}, error) { return decodeFlaggedInt(r) }

func decodeFlaggedInt(r *bitreader.R) (v FlaggedInt, err error) {
	if v.Flag, err = r.ReadBit(); err != nil {
		return
	}
	v.Int, err = r.ReadInt32()
	return
}

// Platform identifies the online service behind a UniqueID.
type Platform uint8

// Known platforms.
const (
	PlatformSplitScreen Platform = 0
	PlatformSteam       Platform = 1
	PlatformPS4         Platform = 2
	PlatformXbox        Platform = 4
)

func (p Platform) String() string {
	switch p {
	case PlatformSplitScreen:
		return "SplitScreen"
	case PlatformSteam:
		return "Steam"
	case PlatformPS4:
		return "PS4"
	case PlatformXbox:
		return "Xbox"
	default:
		return "Unknown"
	}
}

// UniqueID identifies a player across matches.
type UniqueID struct {
	Platform Platform `json:"system_id"`
	// ID is the platform-specific identifier, rendered as hex.
	ID string `json:"remote_id"`
	// Name is the PS4 online name, if any.
	Name    string `json:"name,omitempty"`
	LocalID uint8  `json:"local_id"`
}

func readUniqueID(r *bitreader.R) (interface{}, error) {
	p, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	return decodeUniqueID(r, Platform(p))
}

// readPartyLeader reads a UniqueID that is omitted when its platform is
// split-screen.
func readPartyLeader(r *bitreader.R) (interface{}, error) {
	p, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if Platform(p) == PlatformSplitScreen {
		return UniqueID{Platform: PlatformSplitScreen}, nil
	}
	return decodeUniqueID(r, Platform(p))
}

func decodeUniqueID(r *bitreader.R, p Platform) (UniqueID, error) {
	id := UniqueID{Platform: p}

	var n int
	switch p {
	case PlatformSplitScreen:
		n = 3
	case PlatformSteam, PlatformXbox:
		n = 8
	case PlatformPS4:
		name, err := r.Next(32)
		if err != nil {
			return id, err
		}
		id.Name = strings.TrimRight(string(name), "\x00")
		n = 8
	default:
		return id, errors.Errorf("unknown unique ID platform %d", p)
	}

	raw, err := r.Next(n)
	if err != nil {
		return id, err
	}
	id.ID = hex.EncodeToString(raw)

	if id.LocalID, err = r.ReadUint8(); err != nil {
		return id, err
	}
	return id, nil
}

// RigidBodyState is the replicated physics state of a rigid body actor.
type RigidBodyState struct {
	Sleeping        bool        `json:"sleeping"`
	Position        Vector      `json:"position"`
	Rotation        FloatVector `json:"rotation"`
	LinearVelocity  *Vector     `json:"linear_velocity,omitempty"`
	AngularVelocity *Vector     `json:"angular_velocity,omitempty"`
}

func readRigidBodyState(r *bitreader.R) (interface{}, error) {
	var (
		s   RigidBodyState
		err error
	)
	if s.Sleeping, err = r.ReadBit(); err != nil {
		return nil, err
	}
	if s.Position, err = ReadVector(r); err != nil {
		return nil, err
	}

	var rot [3]float32
	for i := range rot {
		if rot[i], err = readFixedCompressedFloat(r); err != nil {
			return nil, err
		}
	}
	s.Rotation = FloatVector{X: rot[0], Y: rot[1], Z: rot[2]}

	if !s.Sleeping {
		lin, err := ReadVector(r)
		if err != nil {
			return nil, err
		}
		ang, err := ReadVector(r)
		if err != nil {
			return nil, err
		}
		s.LinearVelocity, s.AngularVelocity = &lin, &ang
	}
	return s, nil
}

// TeamPaint is a car's paint selection.
type TeamPaint struct {
	Team          uint8  `json:"team"`
	PrimaryColor  uint8  `json:"primary_color"`
	AccentColor   uint8  `json:"accent_color"`
	PrimaryFinish uint32 `json:"primary_finish"`
	AccentFinish  uint32 `json:"accent_finish"`
}

func readTeamPaint(r *bitreader.R) (interface{}, error) {
	var (
		p   TeamPaint
		err error
	)
	for _, dst := range []*uint8{&p.Team, &p.PrimaryColor, &p.AccentColor} {
		if *dst, err = r.ReadUint8(); err != nil {
			return nil, err
		}
	}
	for _, dst := range []*uint32{&p.PrimaryFinish, &p.AccentFinish} {
		if *dst, err = r.ReadUint32(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Loadout is a player's car customization.
type Loadout struct {
	Version     uint8  `json:"version"`
	Body        uint32 `json:"body"`
	Decal       uint32 `json:"decal"`
	Wheels      uint32 `json:"wheels"`
	RocketTrail uint32 `json:"rocket_trail"`
	Antenna     uint32 `json:"antenna"`
	Topper      uint32 `json:"topper"`
	Unknown1    uint32 `json:"unknown1"`
	Unknown2    uint32 `json:"unknown2,omitempty"`
}

// loadoutExtendedVersion is the first loadout version carrying Unknown2.
const loadoutExtendedVersion = 11

func readLoadout(r *bitreader.R) (interface{}, error) { return decodeLoadout(r) }

func decodeLoadout(r *bitreader.R) (l Loadout, err error) {
	if l.Version, err = r.ReadUint8(); err != nil {
		return
	}
	fields := []*uint32{&l.Body, &l.Decal, &l.Wheels, &l.RocketTrail, &l.Antenna, &l.Topper, &l.Unknown1}
	if l.Version >= loadoutExtendedVersion {
		fields = append(fields, &l.Unknown2)
	}
	for _, dst := range fields {
		if *dst, err = r.ReadUint32(); err != nil {
			return
		}
	}
	return
}

// Loadouts holds the loadouts of both teams.
type Loadouts struct {
	Blue   Loadout `json:"blue"`
	Orange Loadout `json:"orange"`
}

func readLoadouts(r *bitreader.R) (interface{}, error) {
	var (
		l   Loadouts
		err error
	)
	if l.Blue, err = decodeLoadout(r); err != nil {
		return nil, err
	}
	if l.Orange, err = decodeLoadout(r); err != nil {
		return nil, err
	}
	return l, nil
}

// CameraSettings is a player's camera configuration.
type CameraSettings struct {
	FOV         float32 `json:"fov"`
	Height      float32 `json:"height"`
	Pitch       float32 `json:"pitch"`
	Distance    float32 `json:"distance"`
	Stiffness   float32 `json:"stiffness"`
	SwivelSpeed float32 `json:"swivel_speed"`
}

// MarshalJSON implements json.Marshaler.
func (c CameraSettings) MarshalJSON() ([]byte, error) {
	keys := [...]string{"fov", "height", "pitch", "distance", "stiffness", "swivel_speed"}
	vals := [...]float32{c.FOV, c.Height, c.Pitch, c.Distance, c.Stiffness, c.SwivelSpeed}
	return marshalOrdered(len(keys), func(emit func(string, interface{}) bool) {
		for i, k := range keys {
			if !emit(k, vals[i]) {
				return
			}
		}
	})
}

func readCameraSettings(r *bitreader.R) (interface{}, error) {
	var (
		c   CameraSettings
		err error
	)
	for _, dst := range []*float32{&c.FOV, &c.Height, &c.Pitch, &c.Distance, &c.Stiffness, &c.SwivelSpeed} {
		if *dst, err = r.ReadFloat32(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Demolish describes one car demolishing another.
type Demolish struct {
	Attacker         FlaggedInt `json:"attacker"`
	Victim           FlaggedInt `json:"victim"`
	AttackerVelocity Vector     `json:"attacker_velocity"`
	VictimVelocity   Vector     `json:"victim_velocity"`
}

func readDemolish(r *bitreader.R) (interface{}, error) {
	var (
		d   Demolish
		err error
	)
	if d.Attacker, err = decodeFlaggedInt(r); err != nil {
		return nil, err
	}
	if d.Victim, err = decodeFlaggedInt(r); err != nil {
		return nil, err
	}
	if d.AttackerVelocity, err = ReadVector(r); err != nil {
		return nil, err
	}
	if d.VictimVelocity, err = ReadVector(r); err != nil {
		return nil, err
	}
	return d, nil
}

// Explosion is the ball's goal explosion.
type Explosion struct {
	Actor    FlaggedInt `json:"actor"`
	Position Vector     `json:"position"`
}

func readExplosion(r *bitreader.R) (interface{}, error) {
	var (
		e   Explosion
		err error
	)
	if e.Actor, err = decodeFlaggedInt(r); err != nil {
		return nil, err
	}
	if e.Position, err = ReadVector(r); err != nil {
		return nil, err
	}
	return e, nil
}

// Pickup records a boost pad being collected.
type Pickup struct {
	Instigator *int32 `json:"instigator"`
	PickedUp   bool   `json:"picked_up"`
}

func readPickup(r *bitreader.R) (interface{}, error) {
	var p Pickup
	hasInstigator, err := r.ReadBit()
	if err != nil {
		return nil, err
	}
	if hasInstigator {
		id, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		p.Instigator = &id
	}
	if p.PickedUp, err = r.ReadBit(); err != nil {
		return nil, err
	}
	return p, nil
}

// maxReservationNumber bounds the serialized reservation slot number.
const maxReservationNumber = 7

// Reservation is a player's slot reservation on the game server.
type Reservation struct {
	Number   uint32   `json:"number"`
	UniqueID UniqueID `json:"unique_id"`
	Name     string   `json:"name,omitempty"`
	Unknown1 bool     `json:"unknown1"`
	Unknown2 bool     `json:"unknown2"`
}

func readReservation(r *bitreader.R) (interface{}, error) {
	var (
		res Reservation
		err error
	)
	if res.Number, err = r.ReadSerializedInt(maxReservationNumber); err != nil {
		return nil, err
	}
	p, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if res.UniqueID, err = decodeUniqueID(r, Platform(p)); err != nil {
		return nil, err
	}
	if res.UniqueID.Platform != PlatformSplitScreen {
		if res.Name, err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	if res.Unknown1, err = r.ReadBit(); err != nil {
		return nil, err
	}
	if res.Unknown2, err = r.ReadBit(); err != nil {
		return nil, err
	}
	return res, nil
}

// MusicStinger is a music cue triggered by a game event.
type MusicStinger struct {
	Flag    bool   `json:"flag"`
	Cue     uint32 `json:"cue"`
	Trigger uint8  `json:"trigger"`
}

func readMusicStinger(r *bitreader.R) (interface{}, error) {
	var (
		m   MusicStinger
		err error
	)
	if m.Flag, err = r.ReadBit(); err != nil {
		return nil, err
	}
	if m.Cue, err = r.ReadUint32(); err != nil {
		return nil, err
	}
	if m.Trigger, err = r.ReadUint8(); err != nil {
		return nil, err
	}
	return m, nil
}
