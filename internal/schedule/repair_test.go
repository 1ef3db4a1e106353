package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"choircal/internal/model"
)

func TestRepairPadsAndTruncates(t *testing.T) {
	raw := "11月,11/2(日),上午\n" +
		",11/9(日),下午,14:00-17:00,大團,教室,備註,多餘,欄位\n"

	recs, skipped, err := Repair([]byte(raw))
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, recs, 2)

	assert.Equal(t, model.Record{Row: 0, Period: "11月", DateRaw: "11/2(日)", Slot: "上午"}, recs[0])
	assert.Equal(t, model.Record{
		Row: 1, DateRaw: "11/9(日)", Slot: "下午", Time: "14:00-17:00",
		Content: "大團", Venue: "教室", Notes: "備註",
	}, recs[1])
}

func TestRepairHonoursQuotedDelimiters(t *testing.T) {
	raw := `12月,12/25(四),晚上,19:00,"Mozart, Requiem ""Lacrimosa""",音樂廳,` + "\n"

	recs, _, err := Repair([]byte(raw))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, `Mozart, Requiem "Lacrimosa"`, recs[0].Content)
	assert.Equal(t, "音樂廳", recs[0].Venue)
	assert.Equal(t, "", recs[0].Notes)
}

func TestRepairStripsBOMAndWhitespace(t *testing.T) {
	raw := "\xef\xbb\xbf 11月 , 11/2 ,\r\n"

	recs, _, err := Repair([]byte(raw))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "11月", recs[0].Period)
	assert.Equal(t, "11/2", recs[0].DateRaw)
}

func TestRepairEmptySourceIsUnavailable(t *testing.T) {
	for _, raw := range []string{"", "   \n\n", "\xef\xbb\xbf"} {
		recs, _, err := Repair([]byte(raw))
		assert.ErrorIs(t, err, ErrSourceUnavailable, "%q", raw)
		assert.Empty(t, recs)
	}
}

func TestRepairSkipsUnclosedQuoteLine(t *testing.T) {
	raw := "11月,11/2(日),下午,14:00-17:00,\"大團 Mozart,501,\n" +
		",11/9(日),下午,14:00-17:00,小團 Bach,501教室,\n" +
		"12月,12/7(日),下午,14:00-17:00,Brahms,501教室,\n" +
		",12/25(四),晚上,19:00,聖誕演出,音樂廳,\n"

	recs, skipped, err := Repair([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, recs, 3)
	assert.Equal(t, "小團 Bach", recs[0].Content)
	assert.Equal(t, "Brahms", recs[1].Content)
	assert.Equal(t, "聖誕演出", recs[2].Content)
	assert.Equal(t, 2, recs[2].Row)
}

func TestRepairJoinsQuotedCellAcrossLines(t *testing.T) {
	raw := "12月,12/25(四),晚上,19:00,\"聖誕演出\n第二幕\",音樂廳,演出服\r\n" +
		",12/27(六),下午,,走位,,\n"

	recs, skipped, err := Repair([]byte(raw))
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, recs, 2)
	assert.Equal(t, "聖誕演出\n第二幕", recs[0].Content)
	assert.Equal(t, "音樂廳", recs[0].Venue)
	assert.Equal(t, "演出服", recs[0].Notes)
	assert.Equal(t, "12/27(六)", recs[1].DateRaw)
}

func TestRepairToleratesStrayQuoteInsideField(t *testing.T) {
	raw := `,12/7(日),下午,,5" 譜,A"棟,提早` + "\n"

	recs, skipped, err := Repair([]byte(raw))
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, recs, 1)
	assert.Equal(t, `5" 譜`, recs[0].Content)
	assert.Equal(t, `A"棟`, recs[0].Venue)
}

func TestRepairOnlyMalformedIsUnavailable(t *testing.T) {
	recs, skipped, err := Repair([]byte("11月,\"11/2,下午\n"))
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, 1, skipped)
	assert.Empty(t, recs)
}
