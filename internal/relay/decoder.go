package relay

import "bytes"

// LineDecoder splits a byte stream into lines as it arrives. A trailing
// partial line is held until the next Feed or until Flush.
type LineDecoder struct {
	pending []byte
}

// Feed appends chunk and returns every line it completes, without the
// terminating "\n" or "\r\n".
func (d *LineDecoder) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	d.pending = append(d.pending, chunk...)

	var lines []string
	for {
		idx := bytes.IndexByte(d.pending, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimSuffix(d.pending[:idx], []byte{'\r'})))
		d.pending = d.pending[idx+1:]
	}
	if len(d.pending) == 0 {
		d.pending = nil
	}
	return lines
}

// Flush returns the held partial line at end of stream.
func (d *LineDecoder) Flush() (string, bool) {
	if len(d.pending) == 0 {
		return "", false
	}
	line := string(bytes.TrimSuffix(d.pending, []byte{'\r'}))
	d.pending = nil
	return line, true
}
