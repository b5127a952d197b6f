package services

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/Mehmetbaruk/game-distribution-service-sub000/internal/models"
)

func TestTranslateStructurePreservesShape(t *testing.T) {
	backend := &fakeBackend{respond: prefixEach("fr:")}
	e := newTestEngine(t, backend, nil, testEngineConfig())

	var input Value
	if err := json.Unmarshal([]byte(`{"a":"Hi","b":{"c":"Bye"},"d":[1,"Go",null],"e":true,"f":2.50}`), &input); err != nil {
		t.Fatalf("decode input: %v", err)
	}
	before, _ := json.Marshal(input)

	got, err := e.TranslateStructure(context.Background(), input, "en", "fr", "")
	if err != nil {
		t.Fatalf("TranslateStructure() error = %v", err)
	}

	out, _ := json.Marshal(got)
	want := `{"a":"fr:Hi","b":{"c":"fr:Bye"},"d":[1,"fr:Go",null],"e":true,"f":2.50}`
	if string(out) != want {
		t.Errorf("TranslateStructure() = %s, want %s", out, want)
	}

	after, _ := json.Marshal(input)
	if string(before) != string(after) {
		t.Errorf("input mutated: %s -> %s", before, after)
	}
}

func TestTranslateStructureUsesPathsAsElementKeys(t *testing.T) {
	backend := &fakeBackend{respond: prefixEach("de:")}
	e := newTestEngine(t, backend, nil, testEngineConfig())
	ctx := context.Background()

	input := Map(
		Field{Key: "menu", Value: Map(
			Field{Key: "items", Value: List(String("Play"), String("Quit"))},
		)},
		Field{Key: "title", Value: String("Arcade")},
	)
	if _, err := e.TranslateStructure(ctx, input, "en", "de", "home"); err != nil {
		t.Fatalf("TranslateStructure() error = %v", err)
	}

	for elementKey, want := range map[string]string{
		"menu.items[0]": "de:Play",
		"menu.items[1]": "de:Quit",
		"title":         "de:Arcade",
	} {
		record := e.store.FindByLocation(ctx, "home", elementKey, "de")
		if record == nil || record.TranslatedText != want {
			t.Errorf("FindByLocation(%q) = %+v, want %q", elementKey, record, want)
		}
	}
}

func TestTranslateStructureRootString(t *testing.T) {
	e := newTestEngine(t, &fakeBackend{respond: fixed("Salut")}, nil, testEngineConfig())

	got, err := e.TranslateStructure(context.Background(), String("Hi"), "en", "fr", "p")
	if err != nil || got.Kind() != KindString || got.Str() != "Salut" {
		t.Errorf("TranslateStructure() = (%v, %v)", got, err)
	}
	if _, err := e.TranslateStructure(context.Background(), String("Hi"), "en", "", "p"); !errors.Is(err, ErrMissingLanguage) {
		t.Errorf("error = %v, want ErrMissingLanguage", err)
	}
}

func TestTranslatePageOnlyTranslatesMissingKeys(t *testing.T) {
	backend := &fakeBackend{respond: prefixEach("es:")}
	e := newTestEngine(t, backend, nil, testEngineConfig())
	ctx := context.Background()

	seedRaw(t, e.db, models.TranslationRecord{SourceText: "Welcome", TranslatedText: "Bienvenido", SourceLanguage: "en", TargetLanguage: "es",
		PageKey: models.StringPtr("lobby"), ElementKey: models.StringPtr("header")})
	seedRaw(t, e.db, models.TranslationRecord{SourceText: "Broken", TranslatedText: "", SourceLanguage: "en", TargetLanguage: "es",
		PageKey: models.StringPtr("lobby"), ElementKey: models.StringPtr("broken")})

	entries := map[string]string{
		"header": "Welcome",
		"footer": "Contact us",
		"broken": "Broken",
		"blank":  "",
	}
	got, err := e.TranslatePage(ctx, entries, "en", "es", "lobby")
	if err != nil {
		t.Fatalf("TranslatePage() error = %v", err)
	}
	want := map[string]string{
		"header": "Bienvenido",
		"footer": "es:Contact us",
		"broken": "es:Broken",
		"blank":  "",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TranslatePage() = %v, want %v", got, want)
	}

	calls := backend.Calls()
	if len(calls) != 1 || calls[0].Text != "Broken"+DefaultDelimiter+"Contact us" {
		t.Errorf("backend calls = %+v, want one batch of the missing keys", calls)
	}

	e.Wait()
	if record := e.store.FindByLocation(ctx, "lobby", "footer", "es"); record == nil || record.TranslatedText != "es:Contact us" {
		t.Errorf("footer not stored for page: %+v", record)
	}
	if n := countRecords(t, e.db, "source_text = ?", "Broken"); n != 1 {
		t.Errorf("Broken records = %d, want the invalid record healed in place", n)
	}
}

func TestTranslatePageIdentity(t *testing.T) {
	backend := &fakeBackend{}
	e := newTestEngine(t, backend, nil, testEngineConfig())

	entries := map[string]string{"a": "Hello"}
	got, err := e.TranslatePage(context.Background(), entries, "en", "en", "p")
	if err != nil || !reflect.DeepEqual(got, entries) {
		t.Errorf("TranslatePage() = (%v, %v)", got, err)
	}
	if len(backend.Calls()) != 0 {
		t.Error("backend should not be called for identical languages")
	}
}
