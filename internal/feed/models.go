package feed

import (
	"encoding/xml"
	"time"

	"github.com/yegors/birdnest/internal/geometry"
)

// Sighting is one drone observed in a capture
type Sighting struct {
	Serial       string         `json:"serial"`
	Model        string         `json:"model,omitempty"`
	Manufacturer string         `json:"manufacturer,omitempty"`
	Position     geometry.Point `json:"position"`
	Altitude     float64        `json:"altitude,omitempty"`
}

// Snapshot is a single poll of the sensor feed
type Snapshot struct {
	DeviceID  string     `json:"device_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	Sightings []Sighting `json:"sightings"`
}

// TimestampLayout is the layout of the capture's snapshotTimestamp attribute.
// Fractional seconds are optional when parsing.
const TimestampLayout = time.RFC3339Nano

// Wire format of the drones endpoint. Numeric fields are kept as text so a
// missing element can be told apart from a zero value.
type rawReport struct {
	XMLName xml.Name    `xml:"report"`
	Device  rawDevice   `xml:"deviceInformation"`
	Capture *rawCapture `xml:"capture"`
}

type rawDevice struct {
	DeviceID string `xml:"deviceId,attr"`
}

type rawCapture struct {
	SnapshotTimestamp string     `xml:"snapshotTimestamp,attr"`
	Drones            []rawDrone `xml:"drone"`
}

type rawDrone struct {
	SerialNumber string `xml:"serialNumber"`
	Model        string `xml:"model"`
	Manufacturer string `xml:"manufacturer"`
	PositionX    string `xml:"positionX"`
	PositionY    string `xml:"positionY"`
	Altitude     string `xml:"altitude"`
}
