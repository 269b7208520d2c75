package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedCatalogs(t *testing.T) {
	m, err := Load("ru")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"ru", "en"}, m.Languages())

	ru := m.Translator("ru")
	assert.Equal(t, "Пожалуйста, начните с команды /start", ru.T("registration.start_first"))
	assert.Equal(t, "не указан", ru.T("profile.not_set"))
	assert.Equal(t, "включен", ru.T("settings.on"))
}

func TestTranslator_Fallbacks(t *testing.T) {
	fsys := fstest.MapFS{
		"l/ru.yaml":   {Data: []byte("ru:\n  a: \"А\"\n  nested:\n    b: \"Б %d\"\n")},
		"l/en.yml":    {Data: []byte("en:\n  a: \"A\"\n")},
		"l/notes.txt": {Data: []byte("ignored")},
	}

	m, err := LoadFS(fsys, "l", "ru")
	require.NoError(t, err)

	tests := []struct {
		name string
		lang string
		key  string
		want string
	}{
		{name: "exact language", lang: "en", key: "a", want: "A"},
		{name: "region tag", lang: "en-US", key: "a", want: "A"},
		{name: "unknown language uses default", lang: "de", key: "a", want: "А"},
		{name: "missing key falls back to default", lang: "en", key: "nested.b", want: "Б %d"},
		{name: "missing everywhere returns key", lang: "en", key: "nope", want: "nope"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, m.Translator(tc.lang).T(tc.key))
		})
	}

	assert.Equal(t, "Б 7", m.Translator("ru").Tf("nested.b", 7))
	assert.Equal(t, "ru", m.Translator("").Lang())
	assert.Equal(t, []string{"nested.b"}, m.Missing("en"))
	assert.Empty(t, m.Missing("ru"))
}

func TestEmbeddedCatalogsAreComplete(t *testing.T) {
	m, err := Load("ru")
	require.NoError(t, err)

	for _, lang := range m.Languages() {
		assert.Empty(t, m.Missing(lang), "language %s", lang)
	}
}

func TestLoadFS_SplitFilesAndRejectsLists(t *testing.T) {
	fsys := fstest.MapFS{
		"l/ru-1.yaml": {Data: []byte("ru:\n  a: \"1\"\n")},
		"l/ru-2.yaml": {Data: []byte("ru:\n  b: \"2\"\n")},
	}
	m, err := LoadFS(fsys, "l", "ru")
	require.NoError(t, err)
	assert.Equal(t, "1", m.Translator("ru").T("a"))
	assert.Equal(t, "2", m.Translator("ru").T("b"))

	_, err = LoadFS(fstest.MapFS{"l/ru.yaml": {Data: []byte("ru:\n  a: [1, 2]\n")}}, "l", "ru")
	assert.Error(t, err)
}

func TestLoadFS_Errors(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{"l/readme.md": {Data: []byte("x")}}, "l", "ru")
	assert.Error(t, err)

	_, err = LoadFS(fstest.MapFS{"l/en.yaml": {Data: []byte("en:\n  a: A\n")}}, "l", "ru")
	assert.Error(t, err)
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.Equal(t, "key", m.Translator("ru").T("key"))
	assert.Nil(t, m.Languages())
}
