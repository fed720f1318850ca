package discovery

import (
	"strings"
	"testing"
)

func TestDescriptionXMLContainsBridgeID(t *testing.T) {
	xml := DescriptionXML("001788FFFEAABBCC", "bifrost", "192.168.1.50", 443)
	if !strings.Contains(xml, "001788fffeaabbcc") {
		t.Errorf("description XML missing lowercase bridge id:\n%s", xml)
	}
	if !strings.Contains(xml, "192.168.1.50") {
		t.Errorf("description XML missing host")
	}
}

func TestMDNSTXTRecordsIncludeBridgeID(t *testing.T) {
	recs := MDNSTXTRecords("001788FFFEAABBCC", "1.56.0")
	found := false
	for _, r := range recs {
		if r == "bridgeid=001788fffeaabbcc" {
			found = true
		}
	}
	if !found {
		t.Errorf("records = %v, missing bridgeid", recs)
	}
}
