package services

import (
	"context"
	"sort"
	"strconv"
)

// rootElementKey names a structure that is a bare string.
const rootElementKey = "$"

// TranslateStructure returns a copy of node with every string leaf translated.
// Leaves are cached per slot under pageKey using dotted paths such as
// "menu.items[2].label". Numbers, booleans and nulls pass through untouched.
func (e *TranslationEngine) TranslateStructure(ctx context.Context, node Value, sourceLang, targetLang, pageKey string) (Value, error) {
	if sourceLang == "" || targetLang == "" {
		return node, ErrMissingLanguage
	}
	return e.translateNode(ctx, node, "", sourceLang, targetLang, pageKey), nil
}

func (e *TranslationEngine) translateNode(ctx context.Context, node Value, path, sourceLang, targetLang, pageKey string) Value {
	switch node.Kind() {
	case KindString:
		elementKey := path
		if elementKey == "" {
			elementKey = rootElementKey
		}
		translated, _ := e.TranslateOne(ctx, node.Str(), sourceLang, targetLang, Location{PageKey: pageKey, ElementKey: elementKey})
		return String(translated)
	case KindList:
		items := node.Items()
		out := make([]Value, len(items))
		for i, item := range items {
			out[i] = e.translateNode(ctx, item, path+"["+strconv.Itoa(i)+"]", sourceLang, targetLang, pageKey)
		}
		return List(out...)
	case KindMap:
		fields := node.Fields()
		out := make([]Field, len(fields))
		for i, f := range fields {
			childPath := f.Key
			if path != "" {
				childPath = path + "." + f.Key
			}
			out[i] = Field{Key: f.Key, Value: e.translateNode(ctx, f.Value, childPath, sourceLang, targetLang, pageKey)}
		}
		return Map(out...)
	case KindNull, KindNumber, KindBool:
		return node
	}
	return node
}

// TranslatePage translates a flat key to text map for one rendered page.
// Translations already stored for the page are fetched in a single query;
// only the remaining keys go through the batch path.
func (e *TranslationEngine) TranslatePage(ctx context.Context, entries map[string]string, sourceLang, targetLang, pageKey string) (map[string]string, error) {
	out := make(map[string]string, len(entries))
	for k, v := range entries {
		out[k] = v
	}
	if sourceLang == "" || targetLang == "" {
		return out, ErrMissingLanguage
	}
	sourceLang = NormalizeLanguageCode(sourceLang)
	targetLang = NormalizeLanguageCode(targetLang)
	if sourceLang == targetLang || len(entries) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cached := e.store.FindByPage(ctx, pageKey, sourceLang, targetLang)
	var missing []batchItem
	var missingKeys []string
	for _, k := range keys {
		text := entries[k]
		_, core, _ := splitSpace(text)
		if core == "" {
			continue
		}
		if record, ok := cached[k]; ok && record.IsValid() {
			e.stats.RecordCall()
			out[k] = rewrap(text, e.serveRecord(ctx, &record))
			continue
		}
		missing = append(missing, batchItem{text: text, elementKey: k})
		missingKeys = append(missingKeys, k)
	}

	debugLog("Page %q: %d keys, %d from page cache, %d to translate",
		pageKey, len(entries), len(entries)-len(missing), len(missing))
	if len(missing) == 0 {
		return out, nil
	}

	translated, err := e.translateItems(ctx, missing, sourceLang, targetLang, pageKey)
	if err != nil {
		return out, err
	}
	for i, k := range missingKeys {
		out[k] = translated[i]
	}
	return out, nil
}
