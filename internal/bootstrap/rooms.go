package bootstrap

import (
	"fmt"
	"os"

	"lobby/internal/models"

	"gopkg.in/yaml.v3"
)

// roomsFile is the layout of ROOMS_FILE:
//
//	rooms:
//	  - id: general
//	    name: General
//	    description: Main chat for everyone
type roomsFile struct {
	Rooms []models.Room `yaml:"rooms"`
}

// DefaultRooms are seeded when no rooms file is configured.
func DefaultRooms() []models.Room {
	return []models.Room{
		{ID: "general", Name: "General", Description: "Main chat for all users"},
		{ID: "random", Name: "Random", Description: "Talk about anything"},
		{ID: "media", Name: "Photos and videos", Description: "Share photos and videos"},
	}
}

// LoadRooms reads the seed rooms from path, or returns DefaultRooms when
// path is empty.
func LoadRooms(path string) ([]models.Room, error) {
	if path == "" {
		return DefaultRooms(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rooms file: %w", err)
	}
	var f roomsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rooms file %s: %w", path, err)
	}
	for i, r := range f.Rooms {
		if r.ID == "" {
			return nil, fmt.Errorf("rooms file %s: entry %d has no id", path, i)
		}
	}
	return f.Rooms, nil
}
