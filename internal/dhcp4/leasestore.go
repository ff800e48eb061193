package dhcp4

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v2"

	"grimm.is/dhcp4c/internal/state"
)

// LeaseStore persists and loads leases keyed by interface name. Variants
// may write to a JSON file, emit to standard output, keep leases only in
// memory, or persist through the shared SQLite-backed state.Store.
type LeaseStore interface {
	Load(iface string) (*Lease, error)
	Dump(iface string, l *Lease) error
}

// ErrNoLease is returned by Load when no lease is stored for the interface.
var ErrNoLease = fmt.Errorf("dhcp4: no stored lease")

func toRecord(l *Lease) leaseRecord {
	rec := leaseRecord{
		ObtainedAt:    l.ObtainedAt,
		LeaseTime:     int64(l.LeaseTime / time.Second),
		RenewalTime:   int64(l.RenewalTime / time.Second),
		RebindingTime: int64(l.RebindingTime / time.Second),
		DomainName:    l.DomainName,
	}
	if l.YourIPAddr != nil {
		rec.YourIPAddr = l.YourIPAddr.String()
	}
	if l.ServerID != nil {
		rec.ServerID = l.ServerID.String()
	}
	if l.ServerHWAddr != nil {
		rec.ServerHWAddr = l.ServerHWAddr.String()
	}
	if l.SubnetMask != nil {
		rec.SubnetMask = net.IP(l.SubnetMask).String()
	}
	for _, ip := range l.Router {
		rec.Router = append(rec.Router, ip.String())
	}
	for _, ip := range l.DNS {
		rec.DNS = append(rec.DNS, ip.String())
	}
	if len(l.Options) > 0 {
		rec.Options = make(map[int]string, len(l.Options))
		for code, v := range l.Options {
			rec.Options[code] = hex.EncodeToString(v)
		}
	}
	return rec
}

func fromRecord(rec leaseRecord) (*Lease, error) {
	l := &Lease{
		ObtainedAt:    rec.ObtainedAt,
		LeaseTime:     time.Duration(rec.LeaseTime) * time.Second,
		RenewalTime:   time.Duration(rec.RenewalTime) * time.Second,
		RebindingTime: time.Duration(rec.RebindingTime) * time.Second,
		DomainName:    rec.DomainName,
	}
	if rec.YourIPAddr != "" {
		l.YourIPAddr = net.ParseIP(rec.YourIPAddr)
	}
	if rec.ServerID != "" {
		l.ServerID = net.ParseIP(rec.ServerID)
	}
	if rec.ServerHWAddr != "" {
		hw, err := net.ParseMAC(rec.ServerHWAddr)
		if err != nil {
			return nil, fmt.Errorf("dhcp4: parsing stored server hw addr: %w", err)
		}
		l.ServerHWAddr = hw
	}
	if rec.SubnetMask != "" {
		ip := net.ParseIP(rec.SubnetMask).To4()
		if ip != nil {
			l.SubnetMask = net.IPMask(ip)
		}
	}
	for _, s := range rec.Router {
		l.Router = append(l.Router, net.ParseIP(s))
	}
	for _, s := range rec.DNS {
		l.DNS = append(l.DNS, net.ParseIP(s))
	}
	if len(rec.Options) > 0 {
		l.Options = make(map[int][]byte, len(rec.Options))
		for code, s := range rec.Options {
			b, err := hex.DecodeString(s)
			if err != nil {
				return nil, fmt.Errorf("dhcp4: decoding stored option %d: %w", code, err)
			}
			l.Options[code] = b
		}
	}
	return l, nil
}

// MemoryLeaseStore keeps at most one lease per interface in memory. It
// never survives a process restart; useful for tests and for clients that
// always want to start from INIT rather than INIT_REBOOT.
type MemoryLeaseStore struct {
	mu      sync.RWMutex
	leases  map[string]*Lease
}

// NewMemoryLeaseStore returns an empty in-memory LeaseStore.
func NewMemoryLeaseStore() *MemoryLeaseStore {
	return &MemoryLeaseStore{leases: make(map[string]*Lease)}
}

func (m *MemoryLeaseStore) Load(iface string) (*Lease, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leases[iface]
	if !ok {
		return nil, ErrNoLease
	}
	cp := *l
	return &cp, nil
}

func (m *MemoryLeaseStore) Dump(iface string, l *Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *l
	m.leases[iface] = &cp
	return nil
}

// JSONFileLeaseStore persists one lease per interface as a JSON file at
// <dir>/<interface>.lease.json, the layout dhclient-script-style lease
// databases use (one file, atomically rewritten on each dump).
type JSONFileLeaseStore struct {
	Dir string
}

// NewJSONFileLeaseStore returns a LeaseStore rooted at dir.
func NewJSONFileLeaseStore(dir string) *JSONFileLeaseStore {
	return &JSONFileLeaseStore{Dir: dir}
}

func (f *JSONFileLeaseStore) path(iface string) string {
	return fmt.Sprintf("%s/%s.lease.json", f.Dir, iface)
}

func (f *JSONFileLeaseStore) Load(iface string) (*Lease, error) {
	data, err := os.ReadFile(f.path(iface))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoLease
		}
		return nil, err
	}
	var rec leaseRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("dhcp4: parsing lease file: %w", err)
	}
	return fromRecord(rec)
}

func (f *JSONFileLeaseStore) Dump(iface string, l *Lease) error {
	data, err := json.MarshalIndent(toRecord(l), "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path(iface) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path(iface))
}

// StdoutLeaseStore writes the lease as YAML to an io.Writer (typically
// os.Stdout) on every dump, and never answers Load with anything but
// ErrNoLease: a pure observability sink, selected with
// `lease_type = "stdout"`.
type StdoutLeaseStore struct {
	Out interface {
		Write(p []byte) (int, error)
	}
}

// NewStdoutLeaseStore wraps w as a write-only LeaseStore.
func NewStdoutLeaseStore(w interface {
	Write(p []byte) (int, error)
}) *StdoutLeaseStore {
	return &StdoutLeaseStore{Out: w}
}

func (s *StdoutLeaseStore) Load(iface string) (*Lease, error) {
	return nil, ErrNoLease
}

func (s *StdoutLeaseStore) Dump(iface string, l *Lease) error {
	data, err := yaml.Marshal(struct {
		Interface string `yaml:"interface"`
		leaseRecord `yaml:",inline"`
	}{Interface: iface, leaseRecord: toRecord(l)})
	if err != nil {
		return err
	}
	_, err = s.Out.Write(append(data, []byte("---\n")...))
	return err
}

// SQLiteLeaseStore persists leases in the shared state.Store's "leases"
// bucket, keyed by interface name, as JSON.
type SQLiteLeaseStore struct {
	store state.Store
}

// NewSQLiteLeaseStore wraps an already-open state.Store. CreateBucket is
// called eagerly so Dump never fails on a missing bucket.
func NewSQLiteLeaseStore(s state.Store) (*SQLiteLeaseStore, error) {
	if err := s.CreateBucket("leases"); err != nil {
		return nil, err
	}
	return &SQLiteLeaseStore{store: s}, nil
}

func (s *SQLiteLeaseStore) Load(iface string) (*Lease, error) {
	var rec leaseRecord
	if err := s.store.GetJSON("leases", iface, &rec); err != nil {
		if err == state.ErrNotFound {
			return nil, ErrNoLease
		}
		return nil, err
	}
	return fromRecord(rec)
}

func (s *SQLiteLeaseStore) Dump(iface string, l *Lease) error {
	return s.store.SetJSON("leases", iface, toRecord(l))
}
