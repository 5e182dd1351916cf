package task_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/calvinalkan/td/internal/fs"
	"github.com/calvinalkan/td/internal/task"
	"github.com/calvinalkan/td/internal/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClock() *testutil.Clock {
	return testutil.NewClock()
}

func openStore(t *testing.T, fsys fs.FS, path string, c *testutil.Clock) *task.Store {
	t.Helper()

	st, err := task.Open(fsys, path, task.Options{Now: c.Now})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return st
}

func ids(tasks []task.Task) []int {
	out := make([]int, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}

	return out
}

func Test_Store_Open_Returns_Empty_Store_When_File_Is_Missing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tasks.json")
	st := openStore(t, fs.NewReal(), path, newClock())

	assert.Empty(t, st.List())
	assert.NoFileExists(t, path, "opening must not create the file")
}

func Test_Store_Open_Returns_Empty_Store_When_File_Is_Blank(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	st := openStore(t, fs.NewReal(), path, newClock())
	assert.Empty(t, st.List())
}

func Test_Store_Open_Returns_Error_When_Path_Is_Empty(t *testing.T) {
	t.Parallel()

	_, err := task.Open(fs.NewReal(), "", task.Options{})
	require.ErrorIs(t, err, task.ErrTasksFileEmpty)
}

func Test_Store_Create_Assigns_Increasing_Ids_And_Persists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tasks.json")
	c := newClock()
	st := openStore(t, fs.NewReal(), path, c)

	first, err := st.Create("  Buy milk  ", task.PriorityHigh)
	require.NoError(t, err)

	second, err := st.Create("Call Alice", "")
	require.NoError(t, err)

	want := task.Task{
		ID:        1,
		Text:      "Buy milk",
		Priority:  task.PriorityHigh,
		CreatedAt: time.Date(2024, 3, 5, 9, 41, 0, 0, time.Local),
	}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Fatalf("first task mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 2, second.ID)
	assert.Equal(t, task.PriorityMedium, second.Priority, "empty priority means Medium")

	reopened := openStore(t, fs.NewReal(), path, c)
	if diff := cmp.Diff(st.List(), reopened.List()); diff != "" {
		t.Fatalf("reloaded tasks mismatch (-want +got):\n%s", diff)
	}
}

func Test_Store_Create_Returns_ErrValidation_When_Text_Is_Blank(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tasks.json")
	st := openStore(t, fs.NewReal(), path, newClock())

	for _, text := range []string{"", "   ", "\t\n"} {
		_, err := st.Create(text, task.PriorityLow)
		require.ErrorIs(t, err, task.ErrValidation, "text=%q", text)
	}

	assert.Empty(t, st.List())
	assert.NoFileExists(t, path)
}

func Test_Store_Create_Returns_ErrValidation_When_Priority_Is_Unknown(t *testing.T) {
	t.Parallel()

	st := openStore(t, fs.NewReal(), filepath.Join(t.TempDir(), "tasks.json"), newClock())

	_, err := st.Create("x", task.Priority("Urgent"))
	require.ErrorIs(t, err, task.ErrValidation)
	assert.Empty(t, st.List())
}

func Test_Store_Toggle_Sets_And_Clears_CompletedAt(t *testing.T) {
	t.Parallel()

	c := newClock()
	st := openStore(t, fs.NewReal(), filepath.Join(t.TempDir(), "tasks.json"), c)

	created, err := st.Create("Buy milk", task.PriorityHigh)
	require.NoError(t, err)

	c.Advance(90 * time.Minute)

	done, err := st.Toggle(created.ID)
	require.NoError(t, err)
	assert.True(t, done.Completed)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, time.Date(2024, 3, 5, 11, 11, 0, 0, time.Local), *done.CompletedAt)

	reopened, err := st.Toggle(created.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(created, reopened); diff != "" {
		t.Fatalf("double toggle should restore the task (-want +got):\n%s", diff)
	}
}

func Test_Store_Toggle_Returns_ErrNotFound_When_Id_Is_Absent(t *testing.T) {
	t.Parallel()

	st := openStore(t, fs.NewReal(), filepath.Join(t.TempDir(), "tasks.json"), newClock())

	_, err := st.Create("a", task.PriorityLow)
	require.NoError(t, err)

	before := st.List()

	_, err = st.Toggle(99)
	require.ErrorIs(t, err, task.ErrNotFound)
	assert.Equal(t, before, st.List())
}

func Test_Store_Update_Changes_Text_And_Priority_Only(t *testing.T) {
	t.Parallel()

	c := newClock()
	st := openStore(t, fs.NewReal(), filepath.Join(t.TempDir(), "tasks.json"), c)

	created, err := st.Create("Buy milk", task.PriorityLow)
	require.NoError(t, err)

	_, err = st.Toggle(created.ID)
	require.NoError(t, err)

	c.Advance(time.Hour)

	updated, err := st.Update(created.ID, " Buy oat milk ", task.PriorityHigh)
	require.NoError(t, err)

	assert.Equal(t, "Buy oat milk", updated.Text)
	assert.Equal(t, task.PriorityHigh, updated.Priority)
	assert.True(t, updated.Completed)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	require.NotNil(t, updated.CompletedAt)
}

func Test_Store_Update_Rejects_Blank_Text_Without_Mutating(t *testing.T) {
	t.Parallel()

	st := openStore(t, fs.NewReal(), filepath.Join(t.TempDir(), "tasks.json"), newClock())

	created, err := st.Create("keep me", task.PriorityMedium)
	require.NoError(t, err)

	_, err = st.Update(created.ID, "  ", task.PriorityHigh)
	require.ErrorIs(t, err, task.ErrValidation)

	got, err := st.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = st.Update(42, "x", task.PriorityHigh)
	require.ErrorIs(t, err, task.ErrNotFound)
}

func Test_Store_Update_Keeps_Unknown_Priority_When_Only_Text_Changes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tasks.json")
	content := `[{"id": 1, "text": "old", "priority": "Someday", "completed": false, "created_at": "2024-01-01 10:00"}]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	st := openStore(t, fs.NewReal(), path, newClock())

	updated, err := st.Update(1, "new text", task.Priority("Someday"))
	require.NoError(t, err)
	assert.Equal(t, "new text", updated.Text)
	assert.Equal(t, task.Priority("Someday"), updated.Priority)

	_, err = st.Update(1, "new text", task.Priority("Urgent"))
	require.ErrorIs(t, err, task.ErrValidation)

	_, err = st.Update(1, " ", task.Priority("Someday"))
	require.ErrorIs(t, err, task.ErrValidation)

	_, err = st.Update(1, "medium now", task.PriorityMedium)
	require.NoError(t, err)

	// Once replaced, the unknown value cannot be assigned back.
	_, err = st.Update(1, "x", task.Priority("Someday"))
	require.ErrorIs(t, err, task.ErrValidation)

	got, err := st.Get(1)
	require.NoError(t, err)
	assert.Equal(t, task.PriorityMedium, got.Priority)
	assert.Equal(t, "medium now", got.Text)
}

func Test_Store_Delete_Is_Idempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tasks.json")
	st := openStore(t, fs.NewReal(), path, newClock())

	for _, text := range []string{"a", "b", "c"} {
		_, err := st.Create(text, task.PriorityMedium)
		require.NoError(t, err)
	}

	removed, err := st.Delete(2)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = st.Delete(2)
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Equal(t, []int{1, 3}, ids(st.List()))
}

func Test_Store_Delete_Persists_Empty_File_When_Collection_Is_Empty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tasks.json")
	st := openStore(t, fs.NewReal(), path, newClock())

	removed, err := st.Delete(1)
	require.NoError(t, err)
	assert.False(t, removed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func Test_Store_Never_Reuses_Ids_When_Highest_Task_Was_Deleted(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tasks.json")
	c := newClock()
	st := openStore(t, fs.NewReal(), path, c)

	for _, text := range []string{"a", "b", "c"} {
		_, err := st.Create(text, task.PriorityMedium)
		require.NoError(t, err)
	}

	_, err := st.Delete(3)
	require.NoError(t, err)

	next, err := st.Create("d", task.PriorityMedium)
	require.NoError(t, err)
	assert.Equal(t, 4, next.ID)

	_, err = st.Delete(4)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// The high-water mark survives a restart through the sidecar.
	reopened := openStore(t, fs.NewReal(), path, c)

	after, err := reopened.Create("e", task.PriorityMedium)
	require.NoError(t, err)
	assert.Equal(t, 5, after.ID)
}

func Test_Store_Falls_Back_To_Max_Id_When_Sidecar_Is_Missing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tasks.json")
	content := `[
  {"id": 7, "text": "seven", "priority": "Low", "completed": false, "created_at": "2024-01-01 10:00"},
  {"id": 3, "text": "three", "priority": "High", "completed": false, "created_at": "2024-01-01 10:00"}
]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	st := openStore(t, fs.NewReal(), path, newClock())

	created, err := st.Create("eight", task.PriorityMedium)
	require.NoError(t, err)
	assert.Equal(t, 8, created.ID)

	seq, err := os.ReadFile(path + ".seq")
	require.NoError(t, err)
	assert.JSONEq(t, `{"last_id": 8}`, string(seq))
}

func Test_Store_Keeps_State_When_Write_Fails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tasks.json")
	faulty := fs.NewFaulty(fs.NewReal())
	st := openStore(t, faulty, path, newClock())

	created, err := st.Create("Buy milk", task.PriorityHigh)
	require.NoError(t, err)

	before := st.List()
	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)

	faulty.Fail(fs.OpWrite, syscall.ENOSPC)

	_, err = st.Create("Call Alice", task.PriorityLow)
	require.ErrorIs(t, err, task.ErrPersistence)

	_, err = st.Toggle(created.ID)
	require.ErrorIs(t, err, task.ErrPersistence)

	_, err = st.Update(created.ID, "changed", task.PriorityLow)
	require.ErrorIs(t, err, task.ErrPersistence)

	_, err = st.Delete(created.ID)
	require.ErrorIs(t, err, task.ErrPersistence)

	assert.Equal(t, before, st.List(), "memory must match the last successful write")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(onDisk), string(after))

	faulty.Heal(fs.OpWrite)

	next, err := st.Create("Call Alice", task.PriorityLow)
	require.NoError(t, err)
	assert.Greater(t, next.ID, created.ID)
}

func Test_Store_Open_Returns_ErrDecode_When_File_Is_Corrupt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"NotJSON", "this is not json"},
		{"Object", `{"id": 1}`},
		{"Null", "null"},
		{"MissingText", `[{"id": 1, "created_at": "2024-01-01 10:00"}]`},
		{"BadTimestamp", `[{"id": 1, "text": "a", "created_at": "yesterday"}]`},
		{"DuplicateID", `[{"id": 1, "text": "a", "created_at": "2024-01-01 10:00"}, {"id": 1, "text": "b", "created_at": "2024-01-01 10:00"}]`},
		{"CompletedWithoutTimestamp", `[{"id": 1, "text": "a", "completed": true, "created_at": "2024-01-01 10:00"}]`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "tasks.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			st, err := task.Open(fs.NewReal(), path, task.Options{})
			require.ErrorIs(t, err, task.ErrDecode)
			assert.Nil(t, st)
		})
	}
}

func Test_Store_Open_Returns_ErrLocked_When_Another_Store_Holds_The_Lock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tasks.json")

	first, err := task.Open(fs.NewReal(), path, task.Options{Lock: true})
	require.NoError(t, err)

	_, err = task.Open(fs.NewReal(), path, task.Options{Lock: true})
	require.ErrorIs(t, err, task.ErrLocked)

	_, err = task.Open(fs.NewReal(), path, task.Options{Lock: true, LockTimeout: 20 * time.Millisecond})
	require.ErrorIs(t, err, task.ErrLocked)

	// Readers do not lock.
	reader, err := task.Open(fs.NewReal(), path, task.Options{})
	require.NoError(t, err)
	require.NoError(t, reader.Close())

	require.NoError(t, first.Close())

	second, err := task.Open(fs.NewReal(), path, task.Options{Lock: true})
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func Test_Store_Creates_Parent_Directory_On_First_Write(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "dir", "tasks.json")
	st := openStore(t, fs.NewReal(), path, newClock())

	_, err := st.Create("a", task.PriorityLow)
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func Test_Store_Load_Picks_Up_External_Changes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tasks.json")
	c := newClock()
	st := openStore(t, fs.NewReal(), path, c)

	other := openStore(t, fs.NewReal(), path, c)
	_, err := other.Create("from elsewhere", task.PriorityLow)
	require.NoError(t, err)

	require.NoError(t, st.Load())
	assert.Equal(t, []int{1}, ids(st.List()))
}

func Test_Store_List_Returns_Copies(t *testing.T) {
	t.Parallel()

	st := openStore(t, fs.NewReal(), filepath.Join(t.TempDir(), "tasks.json"), newClock())

	created, err := st.Create("a", task.PriorityLow)
	require.NoError(t, err)

	_, err = st.Toggle(created.ID)
	require.NoError(t, err)

	list := st.List()
	list[0].Text = "mutated"
	*list[0].CompletedAt = time.Time{}

	got, err := st.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Text)
	assert.False(t, got.CompletedAt.IsZero())
}

func Test_Store_End_To_End_Scenario(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tasks.json")
	c := newClock()
	st := openStore(t, fs.NewReal(), path, c)

	_, err := st.Create("Buy milk", task.PriorityHigh)
	require.NoError(t, err)

	_, err = st.Create("Call Alice", task.PriorityLow)
	require.NoError(t, err)

	_, err = st.Toggle(2)
	require.NoError(t, err)

	require.NoError(t, st.Close())

	reloaded := openStore(t, fs.NewReal(), path, c)

	all := task.Project(reloaded.List(), task.FilterAll)
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].ID)
	assert.Equal(t, "Buy milk", all[0].Text)
	assert.False(t, all[0].Completed)
	assert.Equal(t, 2, all[1].ID)
	assert.Equal(t, "Call Alice", all[1].Text)
	assert.True(t, all[1].Completed)

	want := task.Summary{Total: 2, Completed: 1, Pending: 1, Percent: 50}
	if diff := cmp.Diff(want, task.Summarize(reloaded.List())); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}

	var raw []map[string]any

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 2)
	assert.NotContains(t, raw[0], "completed_at")
	assert.Equal(t, "2024-03-05 09:41", raw[1]["completed_at"])
}
