// server/internal/models/common.go
package models

// Location is a structured object holding a position and its human-readable address.
type Location struct {
	Latitude       float64 `bson:"latitude" json:"latitude"`
	Longitude      float64 `bson:"longitude" json:"longitude"`
	DisplayAddress string  `bson:"displayAddress" json:"displayAddress"`
}

// HasCoordinates reports whether the location carries a usable lat/lng pair.
// Requests submitted with only a street address have both set to zero.
func (l Location) HasCoordinates() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// MediaPointer references a media document stored on S3 or a similar service.
type MediaPointer struct {
	ID       string `bson:"id" json:"id"`
	URL      string `bson:"url" json:"url"`
	FileName string `bson:"fileName" json:"fileName"`
	FileType string `bson:"fileType" json:"fileType"` // e.g. "image/jpeg"
}
