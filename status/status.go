package status

import (
	"encoding/binary"

	"github.com/CiRIP/ez-reset/errkind"
)

// Status is the decoded state of a printer.
type Status struct {
	State          PrinterState
	Error          PrinterError
	Source         PaperPath
	Levels         []InkLevel
	MaintenanceBox ConsumableLevel
	Serial         string
	Other          map[byte][]byte
}

// entry is one tag-length-value record inside the status payload.
type entry struct {
	tag  byte
	data []byte
}

// parseEntries walks the status struct's length-prefixed TLV body,
// mirroring original_source/ez_reset/utils.py's parse_status_struct.
// The layout is `length:u16 little-endian | entries`, total bytes =
// length + 2; each entry is `tag:u8 | len:u8 | data[len]`.
func parseEntries(data []byte) ([]entry, error) {
	if len(data) < 2 {
		return nil, errkind.FormatErr("status payload shorter than its length prefix", nil)
	}
	length := int(binary.LittleEndian.Uint16(data[0:2]))
	if len(data) != length+2 {
		return nil, errkind.FormatErr("status payload length invalid", nil)
	}

	var entries []entry
	index := 2
	for index < length {
		if index+2 > len(data) {
			return nil, errkind.FormatErr("status entry header truncated", nil)
		}
		tag := data[index]
		index++
		paramLen := int(data[index])
		index++
		if index+paramLen > len(data) {
			return nil, errkind.FormatErr("status entry payload truncated", nil)
		}
		entries = append(entries, entry{tag: tag, data: data[index : index+paramLen]})
		index += paramLen
	}
	return entries, nil
}

// Decode parses a status TLV payload (the bytes following the
// "@BDC ST2\r\n" prefix) into a Status. Grounded on
// original_source/ez_reset/status.py's Status.from_bytes.
func Decode(data []byte) (Status, error) {
	entries, err := parseEntries(data)
	if err != nil {
		return Status{}, err
	}

	s := Status{
		State:          StateIdle,
		Error:          ErrorNone,
		Source:         PaperPathUnknown,
		MaintenanceBox: ConsumableLevel{Level: -1, Status: ConsumableUnknown},
		Other:          map[byte][]byte{},
	}

	for _, e := range entries {
		switch e.tag {
		case 0x01:
			if len(e.data) < 1 {
				return Status{}, errkind.FormatErr("state entry missing its payload byte", nil)
			}
			s.State = printerStateFromRaw(e.data[0])
		case 0x02:
			if len(e.data) < 1 {
				return Status{}, errkind.FormatErr("error entry missing its payload byte", nil)
			}
			s.Error = printerErrorFromRaw(e.data[0])
		case 0x06:
			if len(e.data) < 1 {
				return Status{}, errkind.FormatErr("media source entry missing its payload byte", nil)
			}
			s.Source = paperPathFromRaw(3 - int(e.data[0]))
		case 0x0D:
			if len(e.data) < 1 {
				return Status{}, errkind.FormatErr("maintenance box entry missing its payload byte", nil)
			}
			s.MaintenanceBox = consumableLevelFromRaw(int(e.data[0]))
		case 0x0F:
			levels, err := decodeInkLevels(e.data)
			if err != nil {
				return Status{}, err
			}
			s.Levels = levels
		case 0x40:
			s.Serial = string(e.data)
		default:
			s.Other[e.tag] = append([]byte(nil), e.data...)
		}
	}

	return s, nil
}

// decodeInkLevels splits an ink entry's payload into entry_size-byte
// windows starting at offset 1 (byte 0 declares the window size), the
// TLV status stream's tag 0x0F row.
func decodeInkLevels(data []byte) ([]InkLevel, error) {
	if len(data) < 1 {
		return nil, errkind.FormatErr("ink entry missing its entry-size byte", nil)
	}
	entrySize := int(data[0])
	if entrySize == 0 {
		return nil, errkind.FormatErr("ink entry declares a zero entry size", nil)
	}

	var levels []InkLevel
	for i := 1; i+entrySize <= len(data); i += entrySize {
		window := data[i : i+entrySize]
		if len(window) < 3 {
			return nil, errkind.FormatErr("ink entry window shorter than color+level fields", nil)
		}
		levels = append(levels, inkLevelFromEntry(window))
	}
	return levels, nil
}
