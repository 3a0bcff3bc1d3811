package virtapi

import (
	"encoding/xml"
	"time"

	"github.com/tidwall/gjson"
)

// FakeCheckpoint is one entry in a FakeDomain's checkpoint chain.
type FakeCheckpoint struct {
	Name string
	XML  string
}

// BeginCall records the arguments of one BackupBegin invocation.
type BeginCall struct {
	BackupXML     string
	CheckpointXML string
}

// FakeDomain is an in-memory Domain implementation for unit tests.
// Fields are exported so tests can seed state and inspect calls.
type FakeDomain struct {
	DomName string
	DomXML  string

	Chain      []FakeCheckpoint  // topological order, base first
	ActiveXML  string            // non-empty while a backup job runs
	Capacities map[string]uint64 // disk path -> virtual size

	AgentReplies map[string]string // agent command name -> raw reply

	// Error injection, one knob per operation. Redefine and delete key
	// their errors by checkpoint name so bulk calls can fail mid-chain.
	BeginErr    error
	DescErr     error
	AbortErr    error
	ListErr     error
	RedefineErr map[string]error
	DeleteErr   map[string]error
	AgentErr    error

	// Call records.
	BeginCalls    []BeginCall
	AbortCalls    int
	AgentCommands []string
	Redefined     []string
	Deleted       []string
}

// NewFakeDomain returns an empty fake for the named domain.
func NewFakeDomain(name string) *FakeDomain {
	return &FakeDomain{
		DomName:      name,
		Capacities:   map[string]uint64{},
		AgentReplies: map[string]string{},
		RedefineErr:  map[string]error{},
		DeleteErr:    map[string]error{},
	}
}

func (f *FakeDomain) Name() string { return f.DomName }

func (f *FakeDomain) XMLDesc() (string, error) { return f.DomXML, nil }

func (f *FakeDomain) BackupBegin(backupXML, checkpointXML string) error {
	f.BeginCalls = append(f.BeginCalls, BeginCall{backupXML, checkpointXML})
	if f.BeginErr != nil {
		return f.BeginErr
	}
	if f.ActiveXML != "" {
		return &OperationInvalidError{Detail: "another backup job is already running"}
	}
	f.ActiveXML = backupXML
	if checkpointXML != "" {
		f.Chain = append(f.Chain, FakeCheckpoint{Name: checkpointName(checkpointXML), XML: checkpointXML})
	}
	return nil
}

func (f *FakeDomain) BackupXMLDesc() (string, error) {
	if f.DescErr != nil {
		return "", f.DescErr
	}
	if f.ActiveXML == "" {
		return "", &NotFoundError{Resource: "backup"}
	}
	return f.ActiveXML, nil
}

func (f *FakeDomain) AbortBackup() error {
	f.AbortCalls++
	if f.AbortErr != nil {
		return f.AbortErr
	}
	if f.ActiveXML == "" {
		return &OperationInvalidError{Detail: "no job is active"}
	}
	f.ActiveXML = ""
	return nil
}

func (f *FakeDomain) ListCheckpoints() ([]string, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	names := make([]string, 0, len(f.Chain))
	for _, chk := range f.Chain {
		names = append(names, chk.Name)
	}
	return names, nil
}

func (f *FakeDomain) CheckpointXMLDesc(name string) (string, error) {
	for _, chk := range f.Chain {
		if chk.Name == name {
			return chk.XML, nil
		}
	}
	return "", &NotFoundError{Resource: "checkpoint", Name: name}
}

func (f *FakeDomain) RedefineCheckpoint(x string) error {
	name := checkpointName(x)
	if err := f.RedefineErr[name]; err != nil {
		return err
	}
	f.Redefined = append(f.Redefined, x)
	f.Chain = append(f.Chain, FakeCheckpoint{Name: name, XML: x})
	return nil
}

func (f *FakeDomain) DeleteCheckpoint(name string) error {
	if err := f.DeleteErr[name]; err != nil {
		return err
	}
	for i, chk := range f.Chain {
		if chk.Name == name {
			f.Chain = append(f.Chain[:i], f.Chain[i+1:]...)
			f.Deleted = append(f.Deleted, name)
			return nil
		}
	}
	return &NotFoundError{Resource: "checkpoint", Name: name}
}

func (f *FakeDomain) BlockCapacity(path string) (uint64, error) {
	capacity, ok := f.Capacities[path]
	if !ok {
		return 0, &NotFoundError{Resource: "block device", Name: path}
	}
	return capacity, nil
}

func (f *FakeDomain) AgentCommand(cmd string, _ time.Duration) (string, error) {
	f.AgentCommands = append(f.AgentCommands, cmd)
	if f.AgentErr != nil {
		return "", f.AgentErr
	}
	name := gjson.Get(cmd, "execute").String()
	if reply, ok := f.AgentReplies[name]; ok {
		return reply, nil
	}
	return `{"return":{}}`, nil
}

// checkpointName extracts the <name> element from checkpoint XML.
func checkpointName(x string) string {
	var doc struct {
		Name string `xml:"name"`
	}
	_ = xml.Unmarshal([]byte(x), &doc)
	return doc.Name
}
