package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakala/glrecon/internal/domain"
)

const header = "asofdt,company,account,au,currency,primary account,secondary account,gl balance,ihub balance,balance difference,match status,comments\n"

func TestParseRecordsCSV(t *testing.T) {
	data := header +
		"2024-01-01,17,1234567,4321,USD,all other loans,principal,20000,20000,0,Match,Difference is within tolerance (less than 1 USD)\n" +
		"2024-01-02,17,1234567,4321,EUR,all other loans,deferred costs,20000.50,18000.25,2000.25,Break,\n"

	res, err := ParseRecordsCSV([]byte(data))
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Empty(t, res.Issues)
	assert.Empty(t, res.Inconsistent)

	r := res.Records[1]
	assert.Equal(t, "2024-01-02", r.AsOfDate)
	assert.Equal(t, int64(17), r.Company)
	assert.Equal(t, int64(1234567), r.Account)
	assert.Equal(t, int64(4321), r.UnitCode)
	assert.Equal(t, "EUR", r.Currency)
	assert.Equal(t, "deferred costs", r.SecondaryAccount)
	assert.Equal(t, 20000.50, r.GLBalance)
	assert.Equal(t, 18000.25, r.SubLedgerBalance)
	assert.Equal(t, 2000.25, r.BalanceDifference)
	assert.Equal(t, domain.MatchStatusBreak, r.MatchStatus)
	assert.Equal(t, "Difference is within tolerance (less than 1 USD)", res.Records[0].Comment)
}

func TestParseRecordsCSV_ColumnOrderAndNames(t *testing.T) {
	data := "Account,ASOFDT,gl_balance,ihub_balance,balance_difference,match_status,company,au,currency,primary_account,secondary_account\n" +
		"7654321,2024-02-01,100,50,50,break,3,1000, gbp,all other loans,principal\n"

	res, err := ParseRecordsCSV([]byte(data))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, int64(7654321), res.Records[0].Account)
	assert.Equal(t, domain.MatchStatusBreak, res.Records[0].MatchStatus)
	assert.Equal(t, "GBP", res.Records[0].Currency)
	assert.Equal(t, "", res.Records[0].Comment)
}

func TestParseRecordsCSV_MissingColumns(t *testing.T) {
	_, err := ParseRecordsCSV([]byte("asofdt,account\n2024-01-01,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gl balance")
}

func TestParseRecordsCSV_RowIssuesAreAttributed(t *testing.T) {
	data := header +
		"2024-01-01,17,1111111,4321,USD,all other loans,principal,abc,20000,0,Match,\n" +
		"2024-01-02,17,1111111,4321,USD,all other loans,principal,20000,20000,0,Maybe,\n" +
		",17,2222222,4321,USD,all other loans,principal,20000,20000,0,Match,\n" +
		"2024-01-03,17,not-an-account,4321,USD,all other loans,principal,20000,20000,0,Match,\n" +
		"2024-01-04,17,3333333\n"

	res, err := ParseRecordsCSV([]byte(data))
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Issues, 4)
	assert.Equal(t, int64(1111111), res.Issues[0].Account)
	assert.Equal(t, 2, res.Issues[0].Line)
	assert.Contains(t, res.Issues[0].Reason, "gl balance")
	assert.Contains(t, res.Issues[1].Reason, "match status")
	assert.Equal(t, int64(2222222), res.Issues[2].Account)
	assert.Equal(t, int64(3333333), res.Issues[3].Account)
}

func TestParseRecordsCSV_Inconsistencies(t *testing.T) {
	data := header +
		"2024-01-01,1,5555555,1,USD,a,b,100,90,5,Break,\n" +
		"2024-01-02,1,5555555,1,USD,a,b,100,99,1,Break,\n" +
		"2024-01-03,1,5555555,1,USD,a,b,100.10,100,0.1,Match,\n"

	res, err := ParseRecordsCSV([]byte(data))
	require.NoError(t, err)
	assert.Len(t, res.Records, 3, "inconsistent rows are still loaded")
	require.Len(t, res.Inconsistent, 2)
	assert.Contains(t, res.Inconsistent[0].Reason, "!=")
	assert.Contains(t, res.Inconsistent[1].Reason, "implies Match")
}
