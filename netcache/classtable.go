// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package netcache

import (
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

const (
	// defaultPrefix marks an engine class default object.
	defaultPrefix = "Default__"

	// persistentLevel precedes the name of objects placed in a map.
	persistentLevel = "PersistentLevel."
)

// defaultClasses maps well-known archetypes to their classes.
var defaultClasses = map[string]string{
	"Archetypes.Ball.Ball_Basketball": "TAGame.Ball_TA",
	"Archetypes.Ball.Ball_Default":    "TAGame.Ball_TA",
	"Archetypes.Ball.Ball_Puck":       "TAGame.Ball_TA",
	"Archetypes.Ball.CubeBall":        "TAGame.Ball_TA",

	"Archetypes.Car.Car_Default": "TAGame.Car_TA",

	"Archetypes.CarComponents.CarComponent_Boost":      "TAGame.CarComponent_Boost_TA",
	"Archetypes.CarComponents.CarComponent_Dodge":      "TAGame.CarComponent_Dodge_TA",
	"Archetypes.CarComponents.CarComponent_DoubleJump": "TAGame.CarComponent_DoubleJump_TA",
	"Archetypes.CarComponents.CarComponent_FlipCar":    "TAGame.CarComponent_FlipCar_TA",
	"Archetypes.CarComponents.CarComponent_Jump":       "TAGame.CarComponent_Jump_TA",

	"Archetypes.GameEvent.GameEvent_Basketball":          "TAGame.GameEvent_Soccar_TA",
	"Archetypes.GameEvent.GameEvent_Hockey":              "TAGame.GameEvent_Soccar_TA",
	"Archetypes.GameEvent.GameEvent_Season":              "TAGame.GameEvent_Season_TA",
	"Archetypes.GameEvent.GameEvent_Season:CarArchetype": "TAGame.Car_Season_TA",
	"Archetypes.GameEvent.GameEvent_Soccar":              "TAGame.GameEvent_Soccar_TA",
	"Archetypes.GameEvent.GameEvent_SoccarPrivate":       "TAGame.GameEvent_SoccarPrivate_TA",
	"Archetypes.GameEvent.GameEvent_SoccarSplitscreen":   "TAGame.GameEvent_SoccarSplitscreen_TA",

	"Archetypes.Teams.Team0": "TAGame.Team_Soccar_TA",
	"Archetypes.Teams.Team1": "TAGame.Team_Soccar_TA",

	"GameInfo_Basketball.GameInfo.GameInfo_Basketball:GameReplicationInfoArchetype": "TAGame.GRI_TA",
	"GameInfo_Hockey.GameInfo.GameInfo_Hockey:GameReplicationInfoArchetype":         "TAGame.GRI_TA",
	"GameInfo_Season.GameInfo.GameInfo_Season:GameReplicationInfoArchetype":         "TAGame.GRI_TA",
	"GameInfo_Soccar.GameInfo.GameInfo_Soccar:GameReplicationInfoArchetype":         "TAGame.GRI_TA",
}

// ClassTable maps actor archetypes to the classes that declare them.
//
// Archetypes absent from the table are resolved by rule:
//
//   - Objects placed in a map ("...TheWorld:PersistentLevel.CrowdActor_TA_0")
//     resolve to the short form ".CrowdActor_TA".
//   - Class default objects ("TAGame.Default__PRI_TA") resolve to their class
//     ("TAGame.PRI_TA").
//
// Anything else resolves to itself.
type ClassTable struct {
	classes map[string]string
}

// DefaultClassTable returns a ClassTable holding the standard archetypes.
func DefaultClassTable() *ClassTable {
	ct := ClassTable{classes: make(map[string]string, len(defaultClasses))}
	for k, v := range defaultClasses {
		ct.classes[k] = v
	}
	return &ct
}

// Set maps archetype to class, replacing any existing mapping.
func (ct *ClassTable) Set(archetype, class string) {
	if ct.classes == nil {
		ct.classes = make(map[string]string)
	}
	ct.classes[archetype] = class
}

// Len returns the number of explicit mappings.
func (ct *ClassTable) Len() int { return len(ct.classes) }

// Class returns the class for archetype.
func (ct *ClassTable) Class(archetype string) string {
	if c, ok := ct.classes[archetype]; ok {
		return c
	}

	if idx := strings.Index(archetype, persistentLevel); idx >= 0 {
		return "." + trimInstanceSuffix(archetype[idx+len(persistentLevel):])
	}

	if idx := strings.Index(archetype, defaultPrefix); idx >= 0 {
		return archetype[:idx] + archetype[idx+len(defaultPrefix):]
	}

	return archetype
}

// trimInstanceSuffix removes a trailing "_<number>" instance counter.
func trimInstanceSuffix(name string) string {
	idx := strings.LastIndexByte(name, '_')
	if idx < 0 || idx == len(name)-1 {
		return name
	}
	for _, c := range name[idx+1:] {
		if c < '0' || c > '9' {
			return name
		}
	}
	return name[:idx]
}

// classFile is the TOML layout of a class table override file:
//
//	[classes]
//	"Archetypes.Ball.Ball_Breakout" = "TAGame.Ball_Breakout_TA"
type classFile struct {
	Classes map[string]string `toml:"classes"`
}

// LoadClassTable reads overrides from the TOML file at path and applies them
// on top of DefaultClassTable.
func LoadClassTable(path string) (*ClassTable, error) {
	var cf classFile
	meta, err := toml.DecodeFile(path, &cf)
	if err != nil {
		return nil, errors.Wrapf(err, "loading class table %q", path)
	}
	return classTableFromFile(&cf, meta)
}

// ReadClassTable is like LoadClassTable, but reads TOML from r.
func ReadClassTable(r io.Reader) (*ClassTable, error) {
	var cf classFile
	meta, err := toml.NewDecoder(r).Decode(&cf)
	if err != nil {
		return nil, errors.Wrap(err, "decoding class table")
	}
	return classTableFromFile(&cf, meta)
}

func classTableFromFile(cf *classFile, meta toml.MetaData) (*ClassTable, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.Errorf("unknown class table keys: %s", strings.Join(keys, ", "))
	}

	ct := DefaultClassTable()
	for archetype, class := range cf.Classes {
		archetype, class = strings.TrimSpace(archetype), strings.TrimSpace(class)
		if archetype == "" || class == "" {
			return nil, errors.Errorf("class table entry %q = %q is incomplete", archetype, class)
		}
		ct.Set(archetype, class)
	}
	return ct, nil
}
