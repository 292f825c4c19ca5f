package tui

import (
	"strings"
	"testing"

	"github.com/archscan/funcid/internal/cfgmodel"
	"github.com/archscan/funcid/internal/driver"
)

func TestUpdateTracksCompletedCount(t *testing.T) {
	m := NewModel(2)
	r1 := driver.Result{Routine: &cfgmodel.Routine{Name: "strlen"}, Candidate: "strlen"}
	updated, _ := m.Update(resultMsg(r1))
	m2 := updated.(Model)
	if m2.completed != 1 {
		t.Fatalf("completed = %d, want 1", m2.completed)
	}
	if !strings.Contains(m2.View(), "1/2") {
		t.Fatalf("View() = %q, want it to mention 1/2", m2.View())
	}
}

func TestUpdateDoneQuits(t *testing.T) {
	m := NewModel(1)
	updated, cmd := m.Update(doneMsg{})
	m2 := updated.(Model)
	if !m2.done {
		t.Fatalf("done = false after a doneMsg")
	}
	if cmd == nil {
		t.Fatalf("Update() on doneMsg returned a nil Cmd, want tea.Quit")
	}
	if !strings.Contains(m2.View(), "done:") {
		t.Fatalf("View() after done = %q, want it to report completion", m2.View())
	}
}

func TestUpdateLastResultReflectsErrorAndNoMatch(t *testing.T) {
	m := NewModel(3)
	errRes := driver.Result{Routine: &cfgmodel.Routine{Name: "sub_1"}, Err: errBoom{}}
	updated, _ := m.Update(resultMsg(errRes))
	m1 := updated.(Model)
	if !strings.Contains(m1.last, "unreconstructed") {
		t.Fatalf("last = %q, want it to mention unreconstructed", m1.last)
	}

	noMatchRes := driver.Result{Routine: &cfgmodel.Routine{Name: "sub_2"}}
	updated2, _ := m1.Update(resultMsg(noMatchRes))
	m2 := updated2.(Model)
	if !strings.Contains(m2.last, "no match") {
		t.Fatalf("last = %q, want it to mention no match", m2.last)
	}
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
