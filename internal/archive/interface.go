package archive

// Archiver stores raw sync payloads for audit and replay.
type Archiver interface {
	Store(filename string, data []byte) error
}
