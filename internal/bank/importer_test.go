package bank

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/abhisek/gauge/internal/apperr"
	"github.com/abhisek/gauge/internal/level"
)

type memSink struct {
	nextID   int64
	items    []*Item
	begun    int
	finished *ImportResult
	failOn   string
}

func (m *memSink) BeginImport(_ context.Context, _, _ string, _ int) (int64, error) {
	m.begun++
	return 7, nil
}

func (m *memSink) CreateItem(_ context.Context, it *Item) (int64, error) {
	if m.failOn != "" && it.Text == m.failOn {
		return 0, errors.New("disk full")
	}
	m.nextID++
	it.ID = m.nextID
	m.items = append(m.items, it)
	return it.ID, nil
}

func (m *memSink) FinishImport(_ context.Context, res *ImportResult) error {
	m.finished = res
	return nil
}

const sampleCSV = `question_text,question_type,difficulty_level,skill_focus,option_1,option_2,option_3,correct_answer,explanation
She ___ to school.,multiple_choice,A2,grammar,go,goes,going,goes,Third person singular
,multiple_choice,A1,grammar,a,b,,a,
Pick the synonym of big,multiple_choice,Z9,vocabulary,large,small,,huge,
The cat sat on the ___.,fill_blank,A1,vocabulary,mat,hat,,mat,
`

func TestImport_CSV(t *testing.T) {
	sink := &memSink{}
	im := NewImporter(sink, nil)

	res, err := im.Import(context.Background(), "bank.csv", "", FormatCSV, strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, int64(7), res.ID)
	assert.Equal(t, "admin", res.UploadedBy)
	assert.Equal(t, 4, res.TotalRows)
	assert.Equal(t, 2, res.Successful)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, ImportCompleted, res.Status)
	assert.Equal(t, []int64{1, 2}, res.ItemIDs)
	require.Len(t, res.Errors, 2)

	// First data row is line 2 of the file.
	assert.Equal(t, 3, res.Errors[0].Row)
	assert.Contains(t, res.Errors[0].Errors[0], "Row 3: question_text is empty")

	assert.Equal(t, 4, res.Errors[1].Row)
	joined := strings.Join(res.Errors[1].Errors, "\n")
	assert.Contains(t, joined, "invalid difficulty_level")
	assert.Contains(t, joined, "not found in options")

	require.Len(t, sink.items, 2)
	assert.Equal(t, []string{"go", "goes", "going"}, sink.items[0].Options)
	assert.Equal(t, "Third person singular", sink.items[0].Explanation)
	require.NotNil(t, sink.items[0].ImportID)
	assert.Equal(t, int64(7), *sink.items[0].ImportID)
	assert.Same(t, res, sink.finished)
}

func TestImport_InsertFailureRecordedPerRow(t *testing.T) {
	sink := &memSink{failOn: "She ___ to school."}
	res, err := NewImporter(sink, nil).Import(context.Background(), "bank.csv", "ops", FormatCSV, strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Successful)
	assert.Equal(t, 3, res.Failed)
	assert.Contains(t, res.Errors[0].Errors[0], "database error")
}

func TestReadRows_MissingColumns(t *testing.T) {
	_, err := ReadRows(FormatCSV, strings.NewReader("question_text,option_1\nx,y\n"))
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "correct_answer")
}

func TestReadRows_XLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"question_text", "question_type", "difficulty_level", "skill_focus", "option_1", "option_2", "correct_answer"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Listen and choose", "audio_response", "C1", "listening", "yes", "no", "no"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rows, err := ReadRows(FormatXLSX, buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Num)

	it, problems := ParseRow(rows[0])
	require.Empty(t, problems)
	assert.Equal(t, level.C1, it.Level)
	assert.Equal(t, SkillListening, it.Skill)
	assert.Equal(t, TypeAudioResponse, it.Type)
}

func TestReadRows_JSON(t *testing.T) {
	doc := `[{"question_text":"Order the words","question_type":"ordering","difficulty_level":"B2","skill_focus":"reading",
	          "option_1":"a b c","option_2":"c b a","correct_answer":"a b c"}]`
	rows, err := ReadRows(FormatJSON, strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	it, problems := ParseRow(rows[0])
	require.Empty(t, problems)
	assert.Equal(t, TypeOrdering, it.Type)
}

func TestReadRows_JSONSchemaRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not an array", `{"question_text":"x"}`},
		{"missing required", `[{"question_text":"x"}]`},
		{"unknown key", `[{"question_text":"x","question_type":"fill_blank","difficulty_level":"A1","skill_focus":"grammar","option_1":"a","option_2":"b","correct_answer":"a","level":"A1"}]`},
		{"non-string value", `[{"question_text":1,"question_type":"fill_blank","difficulty_level":"A1","skill_focus":"grammar","option_1":"a","option_2":"b","correct_answer":"a"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRows(FormatJSON, strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err))
		})
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		want    Format
		wantErr bool
	}{
		{"items.csv", FormatCSV, false},
		{"Items.XLSX", FormatXLSX, false},
		{"bank.json", FormatJSON, false},
		{"bank.xls", "", true},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.name)
		if tt.wantErr {
			assert.Error(t, err, tt.name)
			continue
		}
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}
}
