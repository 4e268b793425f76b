package attack

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNewIndex_Dedup(t *testing.T) {
	idx := NewIndex([]Technique{
		{ID: "T1003", Name: "OS Credential Dumping", Tactics: []string{"Credential Access", "Credential Access"}, Groups: []string{"APT28", "APT32", "APT28"}},
		{ID: " t1003 ", Groups: []string{"APT32", "Axiom"}},
		{ID: "", Name: "ignored"},
	})

	if idx.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", idx.Len())
	}
	if got := idx.Tactics("T1003"); !reflect.DeepEqual(got, []string{"Credential Access"}) {
		t.Errorf("Tactics() = %v, want [Credential Access]", got)
	}
	if got := idx.Groups("T1003"); !reflect.DeepEqual(got, []string{"APT28", "APT32", "Axiom"}) {
		t.Errorf("Groups() = %v, want [APT28 APT32 Axiom]", got)
	}
	if got := idx.DisplayName("t1003"); got != "OS Credential Dumping" {
		t.Errorf("DisplayName() = %q, want OS Credential Dumping", got)
	}
}

func TestIndex_UnknownID(t *testing.T) {
	idx := NewIndex([]Technique{{ID: "T1003", Name: "OS Credential Dumping"}})

	if got := idx.Tactics("T9999"); len(got) != 0 {
		t.Errorf("Tactics() = %v, want empty", got)
	}
	if got := idx.Groups("T9999"); len(got) != 0 {
		t.Errorf("Groups() = %v, want empty", got)
	}
	if got := idx.DisplayName("T9999"); got != "" {
		t.Errorf("DisplayName() = %q, want empty", got)
	}

	var nilIdx *Index
	if got := nilIdx.DisplayName("T1003"); got != "" {
		t.Errorf("nil index DisplayName() = %q, want empty", got)
	}
}

func TestIndex_ReturnsCopies(t *testing.T) {
	idx := NewIndex([]Technique{{ID: "T1003", Groups: []string{"APT28"}}})

	groups := idx.Groups("T1003")
	groups[0] = "mutated"

	if got := idx.Groups("T1003"); got[0] != "APT28" {
		t.Errorf("index was mutated through returned slice: %v", got)
	}
}

func TestAppendUnique(t *testing.T) {
	got := AppendUnique([]string{"a"}, "b", "a", "", " c ", "b")
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AppendUnique() = %v, want %v", got, want)
	}
}

func TestEmbeddedSource(t *testing.T) {
	techniques, err := EmbeddedSource{}.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	idx := NewIndex(techniques)

	if got := idx.DisplayName("T1003.002"); got != "Security Account Manager" {
		t.Errorf("DisplayName(T1003.002) = %q, want Security Account Manager", got)
	}
	if got := idx.Tactics("T1003.002"); !reflect.DeepEqual(got, []string{"Credential Access"}) {
		t.Errorf("Tactics(T1003.002) = %v, want [Credential Access]", got)
	}
	if got := idx.Groups("T1003.002"); len(got) == 0 || got[0] != "Wizard Spider" {
		t.Errorf("Groups(T1003.002) = %v, want Wizard Spider first", got)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "attack.yml")
	yamlData := `
- id: T1059.001
  name: PowerShell
  tactics: [Execution]
  groups: [APT29, FIN7]
`
	if err := os.WriteFile(yamlPath, []byte(yamlData), 0o644); err != nil {
		t.Fatal(err)
	}

	jsonPath := filepath.Join(dir, "attack.json")
	jsonData := `[{"id": "T1486", "name": "Data Encrypted for Impact", "tactics": ["Impact"], "groups": ["FIN7"]}]`
	if err := os.WriteFile(jsonPath, []byte(jsonData), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		id       string
		wantName string
	}{
		{"yaml dataset", yamlPath, "T1059.001", "PowerShell"},
		{"json dataset", jsonPath, "T1486", "Data Encrypted for Impact"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			techniques, err := FileSource{Path: tt.path}.Load(context.Background())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got := NewIndex(techniques).DisplayName(tt.id); got != tt.wantName {
				t.Errorf("DisplayName(%s) = %q, want %q", tt.id, got, tt.wantName)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		if _, err := (FileSource{Path: filepath.Join(dir, "missing.json")}).Load(context.Background()); err == nil {
			t.Error("Load() should fail for a missing file")
		}
	})
}

type fakeRedis struct {
	data map[string]string
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func TestPublish_RoundTrip(t *testing.T) {
	client := &fakeRedis{data: map[string]string{}}
	published := []Technique{{ID: "T1003.002", Name: "Security Account Manager", Tactics: []string{"Credential Access"}}}

	if err := Publish(context.Background(), client, "", published); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if _, ok := client.data[DefaultRedisKey]; !ok {
		t.Fatalf("Publish() did not write %s", DefaultRedisKey)
	}

	techniques, err := newRedisSource(client, "").Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := NewIndex(techniques).Tactics("T1003.002"); !reflect.DeepEqual(got, []string{"Credential Access"}) {
		t.Errorf("Tactics() = %v, want [Credential Access]", got)
	}
}

func TestRedisSource(t *testing.T) {
	client := &fakeRedis{data: map[string]string{
		DefaultRedisKey: `[{"id": "T1110.003", "name": "Password Spraying", "tactics": ["Credential Access"]}]`,
	}}

	techniques, err := newRedisSource(client, "").Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := NewIndex(techniques).DisplayName("T1110.003"); got != "Password Spraying" {
		t.Errorf("DisplayName() = %q, want Password Spraying", got)
	}

	if _, err := newRedisSource(client, "other").Load(context.Background()); err == nil {
		t.Error("Load() should fail for a missing key")
	}
}

type countingSource struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Load(_ context.Context) ([]Technique, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return []Technique{{ID: "T1003", Name: "OS Credential Dumping"}}, nil
}

func TestProvider_LoadsOnceConcurrently(t *testing.T) {
	src := &countingSource{}
	p := NewProvider(src)

	const callers = 32
	results := make([]*Index, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			idx, err := p.Get(context.Background())
			if err != nil {
				t.Errorf("Get() error = %v", err)
				return
			}
			results[i] = idx
		}(i)
	}
	wg.Wait()

	if src.calls != 1 {
		t.Errorf("source loaded %d times, want 1", src.calls)
	}
	if p.Loads() != 1 {
		t.Errorf("Loads() = %d, want 1", p.Loads())
	}
	for i, idx := range results {
		if idx != results[0] {
			t.Fatalf("caller %d got a different index instance", i)
		}
	}
}

func TestProvider_CachesError(t *testing.T) {
	src := &countingSource{err: errors.New("boom")}
	p := NewProvider(src)

	for i := 0; i < 3; i++ {
		if _, err := p.Get(context.Background()); err == nil {
			t.Fatal("Get() should return the load error")
		}
	}
	if src.calls != 1 {
		t.Errorf("source loaded %d times, want 1", src.calls)
	}

	lookup := p.Lookup(context.Background())
	if got := lookup.Tactics("T1003"); len(got) != 0 {
		t.Errorf("fallback Lookup Tactics() = %v, want empty", got)
	}
}

func TestProvider_DefaultsToEmbedded(t *testing.T) {
	p := NewProvider(nil)
	idx, err := p.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if idx.Len() == 0 {
		t.Error("embedded dataset should not be empty")
	}
}
