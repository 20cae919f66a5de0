package dashboard

import (
	"os"
	"strings"
)

// envEChartsCDN overrides the host snapshots load the ECharts runtime from.
const envEChartsCDN = "SHEETBOARD_ECHARTS_CDN"

// DefaultEChartsAssetsHost returns the assets host from SHEETBOARD_ECHARTS_CDN,
// or "" to keep the go-echarts default CDN.
func DefaultEChartsAssetsHost() string {
	return ensureTrailingSlash(strings.TrimSpace(os.Getenv(envEChartsCDN)))
}

func ensureTrailingSlash(value string) string {
	if value == "" {
		return ""
	}
	if strings.HasSuffix(value, "/") {
		return value
	}
	return value + "/"
}
