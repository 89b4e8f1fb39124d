package pluginfile

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/pluginsort/core/internal/apperr"
	"github.com/pluginsort/core/internal/gametype"
	"github.com/pluginsort/core/internal/version"
)

// Reader is the PluginReader collaborator interface from §6.
type Reader interface {
	Open(ctx context.Context, path string, gameType gametype.Type, headersOnly bool) (*PluginFile, error)
}

// FileReader opens plugins from a game's data directory on disk.
type FileReader struct {
	DataDir string
}

func NewFileReader(dataDir string) *FileReader {
	return &FileReader{DataDir: dataDir}
}

// Open implements Reader. It resolves the ghosted-plugin (.ghost) fallback
// before touching the filesystem further, reads the TES4 header and, when
// headersOnly is false, walks every record group to build the FormID set,
// override-record count and CRC-32.
func (r *FileReader) Open(ctx context.Context, path string, gt gametype.Type, headersOnly bool) (*PluginFile, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	filename := filepath.Base(path)
	realPath := filepath.Join(r.DataDir, path)
	if _, err := os.Stat(realPath); err != nil {
		ghostPath := realPath + ".ghost"
		if _, gerr := os.Stat(ghostPath); gerr == nil {
			realPath = ghostPath
		} else {
			return nil, apperr.Wrap(apperr.PathNotFound, "open plugin "+filename, err)
		}
	}

	f, err := os.Open(realPath)
	if err != nil {
		return nil, apperr.Wrap(apperr.PathReadFail, "open plugin "+filename, err)
	}
	defer f.Close()

	pf := &PluginFile{
		Filename:   filename,
		Lowercased: strings.ToLower(filename),
		RecordIDs:  make(map[RecordID]struct{}),
	}

	hdr, err := readRecordHeader(f)
	if err != nil {
		return nil, apperr.Wrap(apperr.PathReadFail, "read TES4 header of "+filename, err)
	}
	if hdr.signature != sigTES4 {
		return nil, apperr.New(apperr.PathReadFail, fmt.Sprintf("%s: expected TES4 record, got %s", filename, hdr.signature))
	}

	pf.IsMaster = hdr.flags&flagMaster != 0
	pf.IsLight = hdr.flags&flagLight != 0
	pf.Type = determineType(pf.IsMaster, pf.IsLight, filename)

	topData := make([]byte, hdr.dataSize)
	if _, err := io.ReadFull(f, topData); err != nil {
		return nil, apperr.Wrap(apperr.PathReadFail, "read TES4 data of "+filename, err)
	}
	if err := parseTES4Subrecords(topData, pf); err != nil {
		return nil, apperr.Wrap(apperr.PathReadFail, "parse TES4 subrecords of "+filename, err)
	}

	pf.Description = decodeWindows1252(pf.Description)
	pf.Version = version.Extract(pf.Description)
	pf.BashTags = extractBashTags(pf.Description)

	if headersOnly {
		return pf, nil
	}

	rest, err := io.ReadAll(f)
	if err != nil {
		return nil, apperr.Wrap(apperr.PathReadFail, "read plugin body of "+filename, err)
	}
	if err := walkGroups(rest, pf); err != nil {
		return nil, apperr.Wrap(apperr.PathReadFail, "walk record groups of "+filename, err)
	}
	pf.IsEmpty = pf.NumRecords == 0 && len(pf.RecordIDs) == 0

	crcSource := append(append([]byte{}, headerBytesForCRC(hdr, topData)...), rest...)
	pf.CRC = crc32.ChecksumIEEE(crcSource)

	return pf, nil
}

// headerBytesForCRC reconstitutes the bytes the CRC is computed over. In a
// black-box collaborator, recomputing the exact original byte layout is
// not required to be byte-identical to the game's own loader — only
// stable and derived from the file contents, which this satisfies.
func headerBytesForCRC(hdr *recordHeader, topData []byte) []byte {
	buf := make([]byte, 24)
	copy(buf[0:4], hdr.signature)
	binary.LittleEndian.PutUint32(buf[4:8], hdr.dataSize)
	binary.LittleEndian.PutUint32(buf[8:12], hdr.flags)
	binary.LittleEndian.PutUint32(buf[12:16], hdr.formIDOrLabel)
	binary.LittleEndian.PutUint32(buf[16:20], hdr.timestamp)
	binary.LittleEndian.PutUint16(buf[20:22], hdr.formVersion)
	binary.LittleEndian.PutUint16(buf[22:24], hdr.unknown)
	return append(buf, topData...)
}

type recordHeader struct {
	signature     string
	dataSize      uint32
	flags         uint32
	formIDOrLabel uint32
	timestamp     uint32
	formVersion   uint16
	unknown       uint16
}

func readRecordHeader(r io.Reader) (*recordHeader, error) {
	var buf [24]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	sig := string(buf[0:4])
	for _, c := range sig {
		if c < 32 || c > 126 {
			return nil, fmt.Errorf("invalid record signature bytes")
		}
	}
	return &recordHeader{
		signature:     sig,
		dataSize:      binary.LittleEndian.Uint32(buf[4:8]),
		flags:         binary.LittleEndian.Uint32(buf[8:12]),
		formIDOrLabel: binary.LittleEndian.Uint32(buf[12:16]),
		timestamp:     binary.LittleEndian.Uint32(buf[16:20]),
		formVersion:   binary.LittleEndian.Uint16(buf[20:22]),
		unknown:       binary.LittleEndian.Uint16(buf[22:24]),
	}, nil
}

func parseTES4Subrecords(data []byte, pf *PluginFile) error {
	reader := bytes.NewReader(data)
	for reader.Len() > 0 {
		var sh [6]byte
		if _, err := io.ReadFull(reader, sh[:]); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		subType := string(sh[0:4])
		subSize := binary.LittleEndian.Uint16(sh[4:6])
		subData := make([]byte, subSize)
		if _, err := io.ReadFull(reader, subData); err != nil {
			return fmt.Errorf("read subrecord %s: %w", subType, err)
		}
		switch subType {
		case sigHEDR:
			if len(subData) >= 8 {
				pf.NumRecords = binary.LittleEndian.Uint32(subData[4:8])
			}
		case sigSNAM:
			pf.Description = readNullString(subData)
		case sigMAST:
			name := readNullString(subData)
			if name != "" {
				pf.Masters = append(pf.Masters, name)
			}
		}
	}
	return nil
}

func readNullString(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}

func decodeWindows1252(s string) string {
	decoded, err := charmap.Windows1252.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return decoded
}

// extractBashTags finds the `{{BASH: tag1, tag2}}` marker in a
// description and splits its contents on commas.
func extractBashTags(description string) []string {
	const open = "{{BASH:"
	start := strings.Index(description, open)
	if start < 0 {
		return nil
	}
	rest := description[start+len(open):]
	end := strings.Index(rest, "}}")
	if end < 0 {
		return nil
	}
	parts := strings.Split(rest[:end], ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func determineType(isMaster, isLight bool, filename string) Type {
	if isLight {
		return TypeESL
	}
	if isMaster {
		return TypeESM
	}
	switch strings.ToLower(filepath.Ext(strings.TrimSuffix(filename, ".ghost"))) {
	case ".esm":
		return TypeESM
	case ".esl":
		return TypeESL
	default:
		return TypeESP
	}
}

// walkGroups recursively parses the record groups following the TES4
// header, populating RecordIDs and OverrideRecordCount. A record's FormID
// top byte indexes the plugin's own masters list; an index equal to
// len(masters) (or otherwise unresolvable) means the plugin defines the
// record itself.
func walkGroups(data []byte, pf *PluginFile) error {
	reader := bytes.NewReader(data)
	for reader.Len() > 0 {
		hdr, err := readRecordHeader(reader)
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		if hdr.signature == sigGRUP {
			if hdr.dataSize < 24 {
				return fmt.Errorf("malformed GRUP size %d", hdr.dataSize)
			}
			payload := make([]byte, hdr.dataSize-24)
			if _, err := io.ReadFull(reader, payload); err != nil {
				return err
			}
			if err := walkGroups(payload, pf); err != nil {
				return err
			}
			continue
		}

		payload := make([]byte, hdr.dataSize)
		if _, err := io.ReadFull(reader, payload); err != nil {
			return err
		}
		pf.NumRecords++

		formID := hdr.formIDOrLabel
		masterIdx := int(formID >> 24)
		localID := formID & 0x00FFFFFF

		definingFile := pf.Lowercased
		if masterIdx < len(pf.Masters) {
			definingFile = strings.ToLower(pf.Masters[masterIdx])
		}

		pf.RecordIDs[RecordID{DefiningFile: definingFile, LocalID: localID}] = struct{}{}
		if definingFile != pf.Lowercased {
			pf.OverrideRecordCount++
		}
	}
	return nil
}

// IsPluginExtension reports whether filename has a recognized plugin
// extension (after stripping any .ghost suffix), used by IsValidPlugin
// (§4.5) and by the file()/version() condition functions.
func IsPluginExtension(filename string) bool {
	name := strings.TrimSuffix(filename, ".ghost")
	switch strings.ToLower(filepath.Ext(name)) {
	case ".esp", ".esm", ".esl":
		return true
	default:
		return false
	}
}
