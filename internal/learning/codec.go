package learning

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/GaiaForge/beehive-monitoring/pkg/hive"
)

// State is the complete persistable learning state.
type State struct {
	Baseline    Baseline
	Grid        PatternGrid
	SampleCount uint64
	Season      Season
	Established bool
}

const (
	// "HVLS": hive learning state.
	stateMagic   uint32 = 0x48564C53
	stateVersion uint16 = 1

	establishedFlag uint8 = 1 << 0
)

// ErrCorruptState marks a state file that exists but cannot be trusted:
// bad magic, unsupported version, wrong length, or checksum mismatch.
// Callers treat it the same as a missing file and start fresh.
var ErrCorruptState = errors.New("corrupt learning state")

// Wire layout. Fixed-size fields only, little-endian; a trailing CRC-32
// over everything before it detects torn writes and flash corruption.
type wireCell struct {
	ActivityLevel  float64
	TempOffset     float64
	HumidityOffset float64
	SampleCount    uint32
}

type wireBaseline struct {
	TempMean         float64
	TempStdDev       float64
	HumidityMean     float64
	HumidityStdDev   float64
	PressureMean     float64
	PressureStdDev   float64
	WeightMean       float64
	WeightStdDev     float64
	WeightDailyDelta float64
	AudioEnergy      [hive.NumAudioBands]float64
	AudioStdDev      [hive.NumAudioBands]float64
}

type wireState struct {
	Magic       uint32
	Version     uint16
	Flags       uint8
	Season      uint8
	SampleCount uint64
	Baseline    wireBaseline
	Cells       [24][numSeasons]wireCell
}

// Codec reads and writes the learning state file. Path is the binary
// record of truth; MirrorPath, if set, gets a human-readable JSON copy
// on every save that is never read back.
type Codec struct {
	Path       string
	MirrorPath string
}

// Save atomically replaces the state file: write to a temp file in the
// same directory, then rename over the target.
func (c *Codec) Save(st *State) error {
	data, err := encodeState(st)
	if err != nil {
		return fmt.Errorf("encode learning state: %w", err)
	}

	dir := filepath.Dir(c.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".learning-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmpName, c.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Load reads and verifies the state file. A missing file returns an
// error wrapping fs.ErrNotExist; a damaged one wraps ErrCorruptState.
func (c *Codec) Load() (*State, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	st, err := decodeState(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Path, err)
	}
	return st, nil
}

// WriteMirror writes the JSON diagnostic copy. It is independent of the
// binary save and may fail without affecting it.
func (c *Codec) WriteMirror(st *State) error {
	if c.MirrorPath == "" {
		return nil
	}
	doc := mirrorDoc{
		Baseline:    st.Baseline.Snapshot(),
		Pattern:     st.Grid.Cells(),
		SampleCount: st.SampleCount,
		Season:      st.Season.String(),
		Established: st.Established,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mirror: %w", err)
	}
	if err := os.WriteFile(c.MirrorPath, data, 0o644); err != nil {
		return fmt.Errorf("write mirror: %w", err)
	}
	return nil
}

type mirrorDoc struct {
	Baseline    hive.BaselineSnapshot       `json:"baseline"`
	Pattern     [24][numSeasons]PatternCell `json:"pattern"`
	SampleCount uint64                      `json:"sample_count"`
	Season      string                      `json:"season"`
	Established bool                        `json:"established"`
}

func encodeState(st *State) ([]byte, error) {
	w := wireState{
		Magic:       stateMagic,
		Version:     stateVersion,
		Season:      uint8(st.Season),
		SampleCount: st.SampleCount,
		Baseline:    wireBaseline(st.Baseline),
	}
	if st.Established {
		w.Flags |= establishedFlag
	}
	for h := range st.Grid.cells {
		for s := range st.Grid.cells[h] {
			w.Cells[h][s] = wireCell(st.Grid.cells[h][s])
		}
	}

	var buf bytes.Buffer
	buf.Grow(binary.Size(w) + 4)
	if err := binary.Write(&buf, binary.LittleEndian, &w); err != nil {
		return nil, err
	}
	sum := crc32.ChecksumIEEE(buf.Bytes())
	if err := binary.Write(&buf, binary.LittleEndian, sum); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeState(data []byte) (*State, error) {
	var w wireState
	want := binary.Size(w) + 4
	if len(data) != want {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrCorruptState, len(data), want)
	}

	body, tail := data[:len(data)-4], data[len(data)-4:]
	sum := binary.LittleEndian.Uint32(tail)
	if crc32.ChecksumIEEE(body) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptState)
	}

	if err := binary.Read(bytes.NewReader(body), binary.LittleEndian, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if w.Magic != stateMagic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrCorruptState, w.Magic)
	}
	if w.Version != stateVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptState, w.Version)
	}
	if w.Season >= numSeasons {
		return nil, fmt.Errorf("%w: season %d out of range", ErrCorruptState, w.Season)
	}

	st := &State{
		Baseline:    Baseline(w.Baseline),
		SampleCount: w.SampleCount,
		Season:      Season(w.Season),
		Established: w.Flags&establishedFlag != 0,
	}
	for h := range w.Cells {
		for s := range w.Cells[h] {
			st.Grid.cells[h][s] = PatternCell(w.Cells[h][s])
		}
	}
	return st, nil
}
