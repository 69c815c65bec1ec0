// Package discovery advertises and finds wifiled devices with mDNS.
//
// A daemon announces itself as an "_http._tcp" service once its network
// stack is bound. The TXT record carries "device=wifiled" so scanners can
// tell wifiled devices apart from other HTTP services on the segment:
//
//	device=wifiled
//	path=/
//	version=v1.2.0
//	mode=station
//	mac=02:00:5e:10:00:01
//
// # Scanning
//
//	scanner := discovery.NewScanner()
//	devices, err := scanner.ScanForDevices(ctx)
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Devices must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
