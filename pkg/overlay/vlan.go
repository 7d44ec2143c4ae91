package overlay

// VLANForVNI deterministically maps a VNI to a VLAN tag in [3000, 4000)
// for isolation within one host's shared OVS bridge.
//
// Collisions across VNIs are possible and tolerated: the VXLAN VNI is the
// true isolation boundary, the VLAN tag only needs to keep traffic apart on
// the shared bridge between a tunnel port and its local veth. This mapping
// has no per-host uniqueness check by design; see DESIGN.md's Open
// Question decisions for why.
func VLANForVNI(vni int) int {
	return 3000 + (vni % 1000)
}
