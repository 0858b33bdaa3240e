package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsValidate(t *testing.T) {
	assert.NoError(t, Metrics{}.Validate())
	assert.NoError(t, Metrics{DownloadsCount: 10, PopularityScore: 3}.Validate())

	err := Metrics{ViewsCount: -1}.Validate()
	var metricErr *InvalidMetricValueError
	require.ErrorAs(t, err, &metricErr)
	assert.Equal(t, "views_count", metricErr.Name)
	assert.Equal(t, int64(-1), metricErr.Value)
}

func TestDatasetDTOValidate(t *testing.T) {
	valid := func() *DatasetDTO {
		return &DatasetDTO{BUID: "b", Slug: "s", Raw: []byte(`{"title":"t"}`)}
	}

	assert.NoError(t, valid().Validate())

	var domainErr *InvalidDomainValueError

	d := valid()
	d.BUID = ""
	require.ErrorAs(t, d.Validate(), &domainErr)
	assert.Equal(t, "buid", domainErr.Field)

	d = valid()
	d.Slug = ""
	require.ErrorAs(t, d.Validate(), &domainErr)

	d = valid()
	d.Raw = []byte(`{broken`)
	require.ErrorAs(t, d.Validate(), &domainErr)
	assert.Equal(t, "raw_payload", domainErr.Field)

	d = valid()
	negative := int64(-5)
	d.ReusesCount = &negative
	var metricErr *InvalidMetricValueError
	assert.ErrorAs(t, d.Validate(), &metricErr)
}

func TestMetricsTupleDefaultsToZero(t *testing.T) {
	ten := int64(10)
	d := &DatasetDTO{DownloadsCount: &ten}
	m := d.MetricsTuple()
	assert.Equal(t, int64(10), m.DownloadsCount)
	assert.Equal(t, int64(0), m.ViewsCount)
}

func TestParsePlatformType(t *testing.T) {
	for _, valid := range []string{"opendatasoft", "datagouvfr", "test"} {
		pt, err := ParsePlatformType(valid)
		require.NoError(t, err)
		assert.Equal(t, PlatformType(valid), pt)
	}
	_, err := ParsePlatformType("ckan")
	assert.ErrorIs(t, err, ErrInvalidPlatformType)
}

func TestLLMTransportErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := &LLMTransportError{Err: cause}
	assert.ErrorIs(t, err, cause)
}
