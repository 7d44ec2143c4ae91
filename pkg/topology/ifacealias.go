package topology

import "strings"

// ifaceAliases maps vendor-authored interface names to the short kernel-facing
// names used internally for veth/OVS bookkeeping. The user-authored name is
// always preserved for display; this table only affects what gets wired up.
var ifaceAliases = map[string]string{
	"Ethernet0":          "eth0",
	"Ethernet1":          "eth1",
	"Ethernet2":          "eth2",
	"Ethernet3":          "eth3",
	"GigabitEthernet0/0": "eth0",
	"GigabitEthernet0/1": "eth1",
	"GigabitEthernet0/2": "eth2",
	"GigabitEthernet0/3": "eth3",
}

// normalizeIface resolves a vendor interface name to its internal alias.
// Names already in "ethN" form pass through unchanged.
func normalizeIface(name string) string {
	if alias, ok := ifaceAliases[name]; ok {
		return alias
	}
	if strings.HasPrefix(name, "eth") {
		return name
	}
	return name
}
