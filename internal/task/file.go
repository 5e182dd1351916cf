package task

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/calvinalkan/td/internal/fs"
)

const (
	filePerms = 0o644
	dirPerms  = 0o755
)

// seqSuffix names the sidecar file that remembers the highest id ever issued.
const seqSuffix = ".seq"

// encodeTasks renders tasks as the on-disk JSON array: two-space indent,
// no HTML escaping, trailing newline.
func encodeTasks(tasks []Task) ([]byte, error) {
	if tasks == nil {
		tasks = []Task{}
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(tasks); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// decodeTasks parses and validates a tasks file. Empty or whitespace-only
// content is an empty collection.
func decodeTasks(data []byte) ([]Task, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []Task{}, nil
	}

	var tasks []Task

	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, err
	}

	if tasks == nil {
		return nil, errors.New("expected a JSON array, got null")
	}

	seen := make(map[int]bool, len(tasks))

	for i := range tasks {
		if err := tasks[i].validate(); err != nil {
			return nil, err
		}

		if seen[tasks[i].ID] {
			return nil, fmt.Errorf("duplicate id %d", tasks[i].ID)
		}

		seen[tasks[i].ID] = true
	}

	return tasks, nil
}

// seqFile is the sidecar content.
type seqFile struct {
	LastID int `json:"last_id"`
}

// readLastID returns the id high-water mark from the sidecar file. A missing
// or unreadable sidecar yields 0: ids then continue from the largest id in the
// tasks file.
func readLastID(fsys fs.FS, path string) int {
	data, err := fsys.ReadFile(path + seqSuffix)
	if err != nil {
		return 0
	}

	var seq seqFile

	if err := json.Unmarshal(data, &seq); err != nil || seq.LastID < 0 {
		return 0
	}

	return seq.LastID
}

func writeLastID(fsys fs.FS, path string, lastID int) error {
	data, err := json.Marshal(seqFile{LastID: lastID})
	if err != nil {
		return err
	}

	return fsys.WriteFileAtomic(path+seqSuffix, append(data, '\n'), filePerms)
}

// QuarantineSuffix is the timestamp layout appended to quarantined files.
const QuarantineSuffix = ".corrupt-20060102-150405"

// Quarantine moves an unreadable tasks file out of the way so a fresh store
// can be started without losing the original bytes. Returns the new path.
//
// If the target name is already taken, a numeric suffix is added.
func Quarantine(fsys fs.FS, path string, now time.Time) (string, error) {
	base := path + now.Format(QuarantineSuffix)
	target := base

	for n := 1; ; n++ {
		exists, err := fsys.Exists(target)
		if err != nil {
			return "", fmt.Errorf("quarantine %s: %w", path, err)
		}

		if !exists {
			break
		}

		target = fmt.Sprintf("%s.%d", base, n)
	}

	if err := fsys.Rename(path, target); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", path, err)
	}

	return target, nil
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
