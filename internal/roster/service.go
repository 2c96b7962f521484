package roster

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bursar-dev/bursar/internal/model"
)

var (
	// ErrDuplicate is returned when adding an ID that is already on the roster.
	ErrDuplicate = errors.New("duplicate id")
	// ErrInvalid is returned for a roster row that fails validation.
	ErrInvalid = errors.New("invalid roster entry")
)

const (
	rosterDir    = "roster"
	staffFile    = "staff.csv"
	studentsFile = "students.csv"
)

// Service provides in-memory lookup over the staff and student registries.
type Service struct {
	staff     []model.Staff
	staffByID map[string]model.Staff
	students  []model.Student
	studentBy map[string]model.Student
}

// NewService creates a Service from staff and student slices.
func NewService(staff []model.Staff, students []model.Student) *Service {
	s := &Service{
		staffByID: make(map[string]model.Staff, len(staff)),
		studentBy: make(map[string]model.Student, len(students)),
	}
	for _, st := range staff {
		s.staff = append(s.staff, st)
		s.staffByID[st.ID] = st
	}
	for _, st := range students {
		s.students = append(s.students, st)
		s.studentBy[st.ID] = st
	}
	return s
}

// Load reads roster/staff.csv and roster/students.csv. Missing files are
// empty registries.
func Load(repoRoot string) (*Service, error) {
	dir := filepath.Join(repoRoot, rosterDir)

	var staff []model.Staff
	f, err := os.Open(filepath.Join(dir, staffFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("opening staff roster: %w", err)
	default:
		staff, err = ReadStaff(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading staff roster: %w", err)
		}
	}

	var students []model.Student
	f, err = os.Open(filepath.Join(dir, studentsFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("opening student register: %w", err)
	default:
		students, err = ReadStudents(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading student register: %w", err)
		}
	}

	return NewService(staff, students), nil
}

// Save writes both registries under roster/.
func (s *Service) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, rosterDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating roster dir: %w", err)
	}

	if err := writeFile(filepath.Join(dir, staffFile), func(f *os.File) error {
		return WriteStaff(f, s.staff)
	}); err != nil {
		return fmt.Errorf("writing staff roster: %w", err)
	}
	if err := writeFile(filepath.Join(dir, studentsFile), func(f *os.File) error {
		return WriteStudents(f, s.students)
	}); err != nil {
		return fmt.Errorf("writing student register: %w", err)
	}
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Staff returns the staff roster in insertion order.
func (s *Service) Staff() []model.Staff {
	return s.staff
}

// StaffByID returns a staff member by ID.
func (s *Service) StaffByID(id string) (model.Staff, bool) {
	st, ok := s.staffByID[id]
	return st, ok
}

// AddStaff validates and adds a staff member.
func (s *Service) AddStaff(st model.Staff) error {
	st.ID = strings.TrimSpace(st.ID)
	if st.ID == "" || strings.TrimSpace(st.Name) == "" {
		return fmt.Errorf("%w: staff id and name are required", ErrInvalid)
	}
	if st.BaseSalary.IsNegative() {
		return fmt.Errorf("%w: base salary %s must not be negative", ErrInvalid, st.BaseSalary)
	}
	if !st.BaseSalary.Equal(st.BaseSalary.Round(2)) {
		return fmt.Errorf("%w: base salary %s has more than 2 decimal places", ErrInvalid, st.BaseSalary)
	}
	if _, ok := s.staffByID[st.ID]; ok {
		return fmt.Errorf("%w: staff %q", ErrDuplicate, st.ID)
	}
	s.staff = append(s.staff, st)
	s.staffByID[st.ID] = st
	return nil
}

// SetBaseSalary changes a staff member's base salary.
func (s *Service) SetBaseSalary(id string, salary decimal.Decimal) error {
	if salary.IsNegative() {
		return fmt.Errorf("%w: base salary %s must not be negative", ErrInvalid, salary)
	}
	for i := range s.staff {
		if s.staff[i].ID == id {
			s.staff[i].BaseSalary = salary
			s.staffByID[id] = s.staff[i]
			return nil
		}
	}
	return fmt.Errorf("%w: unknown staff %q", ErrInvalid, id)
}

// Students returns enrolled students sorted by ID.
func (s *Service) Students() []model.Student {
	out := append([]model.Student(nil), s.students...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Student returns a student by ID.
func (s *Service) Student(id string) (model.Student, bool) {
	st, ok := s.studentBy[id]
	return st, ok
}

// AddStudent validates and enrolls a student.
func (s *Service) AddStudent(st model.Student) error {
	st.ID = strings.TrimSpace(st.ID)
	if st.ID == "" || strings.TrimSpace(st.Name) == "" {
		return fmt.Errorf("%w: student id and name are required", ErrInvalid)
	}
	if _, ok := s.studentBy[st.ID]; ok {
		return fmt.Errorf("%w: student %q", ErrDuplicate, st.ID)
	}
	s.students = append(s.students, st)
	s.studentBy[st.ID] = st
	return nil
}

// Exists reports whether a student ID is enrolled.
func (s *Service) Exists(id string) bool {
	_, ok := s.studentBy[id]
	return ok
}
