package protocol

// MaxWriteBytes is the largest single BLE write the printer accepts reliably.
const MaxWriteBytes = 200

// Chunk splits a frame into consecutive pieces of at most maxBytes, each sent
// as its own BLE write. maxBytes is raised to RasterHeaderLen if smaller so a
// raster header always travels in one write. Returns nil for an empty frame.
// The pieces alias f.
func Chunk(f Frame, maxBytes int) [][]byte {
	if len(f) == 0 {
		return nil
	}
	if maxBytes < RasterHeaderLen {
		maxBytes = RasterHeaderLen
	}

	chunks := make([][]byte, 0, (len(f)+maxBytes-1)/maxBytes)
	for len(f) > 0 {
		n := maxBytes
		if len(f) < n {
			n = len(f)
		}
		chunks = append(chunks, f[:n])
		f = f[n:]
	}
	return chunks
}
