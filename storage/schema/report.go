package schema

import "fmt"

// Key layout
//
//	r:<chain_id>:<cycle_id>  cycle report json, cycle ids sort by time
//	l:<chain_id>             cycle id of the latest report
//	n:<chain_id>             number of cycles run

func ReportStorageKey(chainID, cycleID string) []byte {
	return []byte(fmt.Sprintf("r:%s:%s", chainID, cycleID))
}

func ReportByChainStoragePrefix(chainID string) []byte {
	return []byte(fmt.Sprintf("r:%s:", chainID))
}

func LatestReportStorageKey(chainID string) []byte {
	return []byte(fmt.Sprintf("l:%s", chainID))
}

func CycleCounterStorageKey(chainID string) []byte {
	return []byte(fmt.Sprintf("n:%s", chainID))
}
