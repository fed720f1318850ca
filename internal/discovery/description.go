// Package discovery provides the pure, I/O-free pieces of bridge
// discovery: the SSDP description XML body and the mDNS TXT record set.
// The UDP beacons themselves (process launch, socket plumbing) are out of
// scope; callers of an out-of-tree Announcer implementation call into
// this package for the bytes they advertise.
package discovery

import (
	"fmt"
	"strings"
)

// descriptionTemplate mirrors the UPnP description document a real Hue
// bridge serves at /description.xml, trimmed to the fields Hue-aware
// clients actually read.
const descriptionTemplate = `<?xml version="1.0" encoding="UTF-8" ?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
<specVersion>
<major>1</major>
<minor>0</minor>
</specVersion>
<URLBase>http://%[1]s:%[2]d/</URLBase>
<device>
<deviceType>urn:schemas-upnp-org:device:Basic:1</deviceType>
<friendlyName>%[3]s (%[1]s)</friendlyName>
<manufacturer>Signify</manufacturer>
<manufacturerURL>https://www.philips-hue.com</manufacturerURL>
<modelDescription>Philips hue Personal Wireless Lighting</modelDescription>
<modelName>Philips hue bridge 2015</modelName>
<modelNumber>BSB002</modelNumber>
<modelURL>https://www.philips-hue.com</modelURL>
<serialNumber>%[4]s</serialNumber>
<UDN>uuid:2f402f80-da50-11e1-9b23-%[4]s</UDN>
</device>
</root>`

// DescriptionXML renders the SSDP/UPnP description document for a bridge
// identified by bridgeID (the MAC-derived identifier from
// internal/bridgeid), reachable at host:port.
func DescriptionXML(bridgeID, friendlyName, host string, port int) string {
	return fmt.Sprintf(descriptionTemplate, host, port, friendlyName, strings.ToLower(bridgeID))
}

// SSDPSearchTarget is the ST header value Hue-aware clients M-SEARCH for.
const SSDPSearchTarget = "urn:schemas-upnp-org:device:Basic:1"

// MDNSService is the mDNS service type real bridges advertise.
const MDNSService = "_hue._tcp"

// MDNSTXTRecords builds the TXT record set a mDNS responder should attach
// to the bridge's _hue._tcp advertisement.
func MDNSTXTRecords(bridgeID string, apiVersion string) []string {
	return []string{
		"bridgeid=" + strings.ToLower(bridgeID),
		"modelid=BSB002",
		"apiversion=" + apiVersion,
	}
}
