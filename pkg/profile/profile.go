// Package profile loads device profiles, the INI files defining the objects
// of a CiA device profile (DS-401, ...) or of the DS-302 network management
// additions, and installs them on a node.
package profile

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/samsamfire/objdictgen/pkg/od"
	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

//go:embed profiles/*.prf
var embedded embed.FS

const (
	Extension = ".prf"
	// Env variable holding extra profile directories, separated like PATH
	EnvProfileDir = "ODG_PROFILE_DIR"
	DS302Name     = "DS-302"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileLoad     = errors.New("invalid profile")
)

var matchIdxRegExp = regexp.MustCompile(`^[0-9A-Fa-f]{4}$`)
var matchSubidxRegExp = regexp.MustCompile(`^([0-9A-Fa-f]{4})sub([0-9A-Fa-f]+)$`)
var matchMenuRegExp = regexp.MustCompile(`^Menu([0-9]+)$`)

// Profile is the content of one profile file
type Profile struct {
	Name        string
	Description string
	Mapping     od.Mapping
	Menus       []od.MenuEntry
}

func loadError(name string, format string, args ...any) error {
	return fmt.Errorf("%w %v: %s", ErrProfileLoad, name, fmt.Sprintf(format, args...))
}

// Parse reads a profile. source is anything [ini.Load] accepts: a path,
// a []byte or an io.Reader.
func Parse(name string, source any) (*Profile, error) {
	file, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, source)
	if err != nil {
		return nil, loadError(name, "%v", err)
	}
	profile := &Profile{Name: name, Mapping: od.Mapping{}}
	if section, err := file.GetSection("Profile"); err == nil {
		profile.Name = section.Key("Name").MustString(name)
		profile.Description = section.Key("Description").String()
	}

	type menu struct {
		order int
		entry od.MenuEntry
	}
	menus := []menu{}
	subs := map[uint16]map[int]od.SubentryDef{}

	for _, section := range file.Sections() {
		sectionName := section.Name()
		switch {
		case matchIdxRegExp.MatchString(sectionName):
			idx, _ := strconv.ParseUint(sectionName, 16, 16)
			def, err := objectFromSection(section)
			if err != nil {
				return nil, loadError(name, "[%v] %v", sectionName, err)
			}
			profile.Mapping[uint16(idx)] = def

		case matchSubidxRegExp.MatchString(sectionName):
			match := matchSubidxRegExp.FindStringSubmatch(sectionName)
			idx, _ := strconv.ParseUint(match[1], 16, 16)
			position, err := strconv.ParseUint(match[2], 16, 8)
			if err != nil {
				return nil, loadError(name, "[%v] %v", sectionName, err)
			}
			sub, err := subentryFromSection(section)
			if err != nil {
				return nil, loadError(name, "[%v] %v", sectionName, err)
			}
			if subs[uint16(idx)] == nil {
				subs[uint16(idx)] = map[int]od.SubentryDef{}
			}
			subs[uint16(idx)][int(position)] = sub

		case matchMenuRegExp.MatchString(sectionName):
			order, _ := strconv.Atoi(matchMenuRegExp.FindStringSubmatch(sectionName)[1])
			entry := od.MenuEntry{Name: section.Key("Name").String(), Indexes: []uint16{}}
			for _, raw := range section.Key("Indexes").Strings(",") {
				index, err := strconv.ParseUint(raw, 0, 16)
				if err != nil {
					return nil, loadError(name, "[%v] index %q: %v", sectionName, raw, err)
				}
				entry.Indexes = append(entry.Indexes, uint16(index))
			}
			menus = append(menus, menu{order, entry})
		}
	}

	for index, positions := range subs {
		def, ok := profile.Mapping[index]
		if !ok {
			return nil, loadError(name, "subentries of 0x%04X without [%04X] section", index, index)
		}
		for i := 0; i < len(positions); i++ {
			sub, ok := positions[i]
			if !ok {
				return nil, loadError(name, "0x%04X is missing subentry %d", index, i)
			}
			def.Values = append(def.Values, sub)
		}
	}
	for index, def := range profile.Mapping {
		if err := od.ValidateDef(index, def); err != nil {
			return nil, fmt.Errorf("%w %v: %w", ErrProfileLoad, name, err)
		}
	}

	sort.Slice(menus, func(i, j int) bool { return menus[i].order < menus[j].order })
	for _, m := range menus {
		for _, index := range m.entry.Indexes {
			if _, ok := profile.Mapping[index]; !ok {
				return nil, loadError(name, "menu %q lists unknown index 0x%04X", m.entry.Name, index)
			}
		}
		profile.Menus = append(profile.Menus, m.entry)
	}
	log.Debugf("[PROFILE] parsed %v, %d objects, %d menus", profile.Name, len(profile.Mapping), len(profile.Menus))
	return profile, nil
}

func objectFromSection(section *ini.Section) (*od.ObjectDef, error) {
	def := &od.ObjectDef{Name: section.Key("ParameterName").String()}
	kind, err := od.ParseStruct(section.Key("Struct").MustString("var"))
	if err != nil {
		return nil, err
	}
	def.Struct = kind
	if def.Need, err = boolKey(section, "Need"); err != nil {
		return nil, err
	}
	if section.HasKey("Callback") {
		callback, err := boolKey(section, "Callback")
		if err != nil {
			return nil, err
		}
		def.Callback = &callback
	}
	if def.Incr, err = intKey(section, "Incr"); err != nil {
		return nil, err
	}
	if def.NbMax, err = intKey(section, "NbMax"); err != nil {
		return nil, err
	}
	return def, nil
}

func subentryFromSection(section *ini.Section) (od.SubentryDef, error) {
	sub := od.SubentryDef{
		Name:   section.Key("ParameterName").String(),
		Access: od.Access(strings.ToLower(section.Key("AccessType").MustString(string(od.AccessRW)))),
	}
	datatype, err := strconv.ParseUint(section.Key("DataType").String(), 0, 16)
	if err != nil {
		return sub, fmt.Errorf("DataType: %v", err)
	}
	sub.Type = uint16(datatype)
	if sub.PDO, err = boolKey(section, "PDOMapping"); err != nil {
		return sub, err
	}
	if sub.NbMin, err = intKey(section, "NbMin"); err != nil {
		return sub, err
	}
	if sub.NbMax, err = intKey(section, "NbMax"); err != nil {
		return sub, err
	}
	if section.HasKey("DefaultValue") {
		value, err := od.ParseValue(section.Key("DefaultValue").String(), sub.Type)
		if err != nil {
			return sub, fmt.Errorf("DefaultValue: %v", err)
		}
		sub.Default = value
	}
	return sub, nil
}

func intKey(section *ini.Section, key string) (int, error) {
	if !section.HasKey(key) {
		return 0, nil
	}
	v, err := strconv.ParseUint(section.Key(key).String(), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%v: %v", key, err)
	}
	return int(v), nil
}

// boolKey accepts 0/1 like EDS files, and true/false
func boolKey(section *ini.Section, key string) (bool, error) {
	if !section.HasKey(key) {
		return false, nil
	}
	v, err := section.Key(key).Bool()
	if err != nil {
		return false, fmt.Errorf("%v: %v", key, err)
	}
	return v, nil
}

// SearchPath returns the directories searched before the embedded profiles
func SearchPath(dirs ...string) []string {
	path := append([]string{}, dirs...)
	if env := os.Getenv(EnvProfileDir); env != "" {
		path = append(path, filepath.SplitList(env)...)
	}
	return path
}

// Find returns the profile called name, from the first directory holding
// <name>.prf, or from the embedded profiles
func Find(name string, dirs ...string) (*Profile, error) {
	filename := name + Extension
	for _, dir := range SearchPath(dirs...) {
		path := filepath.Join(dir, filename)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		log.Debugf("[PROFILE] loading %v", path)
		return Parse(name, path)
	}
	raw, err := embedded.ReadFile("profiles/" + filename)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %v", ErrProfileNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return Parse(name, raw)
}

// Load returns the definitions and menus of the profile called name
func Load(name string, dirs ...string) (od.Mapping, []od.MenuEntry, error) {
	profile, err := Find(name, dirs...)
	if err != nil {
		return nil, nil, err
	}
	return profile.Mapping, profile.Menus, nil
}

// DS302 returns the embedded DS-302 definitions
func DS302() od.Mapping {
	profile, err := Find(DS302Name)
	if err != nil {
		panic(err)
	}
	return profile.Mapping
}

// Available lists the profile names found in dirs, the profile directories
// and the embedded profiles
func Available(dirs ...string) []string {
	seen := map[string]bool{}
	names := []string{}
	add := func(filename string) {
		if !strings.HasSuffix(filename, Extension) {
			return
		}
		name := strings.TrimSuffix(filename, Extension)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, dir := range SearchPath(dirs...) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			add(entry.Name())
		}
	}
	entries, _ := embedded.ReadDir("profiles")
	for _, entry := range entries {
		add(entry.Name())
	}
	sort.Strings(names)
	return names
}

// Apply installs a profile on node. DS-302 fills the DS302 layer, any other
// name replaces the device profile, "None" removes it. Definitions
// clashing with the user mapping are refused.
func Apply(node *od.Node, name string, dirs ...string) error {
	if name == od.NoProfileName {
		node.Profile = od.Mapping{}
		node.ProfileName = od.NoProfileName
		node.SpecificMenu = nil
		return nil
	}
	mapping, menus, err := Load(name, dirs...)
	if err != nil {
		return err
	}
	for _, index := range mapping.Indexes() {
		if _, ok := node.UserMapping[index]; ok {
			return od.NewIndexError(index, od.ErrAmbiguousDefinition, "profile %v redefines a user object", name)
		}
	}
	if name == DS302Name {
		node.DS302 = mapping
	} else {
		node.Profile = mapping
		node.ProfileName = name
		node.SpecificMenu = menus
	}
	log.Infof("[PROFILE] applied %v to %v, %d objects", name, node.Name, len(mapping))
	return nil
}
