// Package daemon implements a client for the SCION control-plane daemon's
// AS/path-lookup RPC service, reached over google.golang.org/grpc with a
// JSON wire codec in place of a generated protobuf stub.
package daemon

// ASInfo is the response to an AS query: the daemon's own ISD-ASN plus
// whether the local AS is a core AS, and its link MTU.
type ASInfo struct {
	IsdAs uint64 `json:"isd_as"`
	Core  bool   `json:"core"`
	MTU   uint32 `json:"mtu"`
}

// PathInterface identifies the underlay address of the first-hop border
// router for a path.
type PathInterface struct {
	Address string `json:"address"`
}

// Path is one path returned by the Paths RPC: a raw SCION path-header
// blob (empty for intra-AS paths) plus the underlay address to send the
// first packet to.
type Path struct {
	Raw       []byte        `json:"raw"`
	Interface PathInterface `json:"interface"`
	Expiry    int64         `json:"expiry,omitempty"`
	MTU       uint32        `json:"mtu,omitempty"`
}

// PathsRequest is the request message for the Paths RPC.
type PathsRequest struct {
	SourceIsdAs      uint64 `json:"source_isd_as"`
	DestinationIsdAs uint64 `json:"destination_isd_as"`
	Refresh          bool   `json:"refresh"`
	Hidden           bool   `json:"hidden"`
}

// PathsResponse is the response message for the Paths RPC.
type PathsResponse struct {
	Paths []Path `json:"paths"`
}

// ASRequest is the request message for the AS RPC. IsdAs of 0 asks for
// the daemon's own AS.
type ASRequest struct {
	IsdAs uint64 `json:"isd_as"`
}

// InterfacesRequest/Response and the remaining message types below exist
// so the client surface matches the daemon's full RPC set; the
// translator's data path only calls AS and Paths.

type InterfacesRequest struct{}

type Interface struct {
	Address PathInterface `json:"address"`
}

type InterfacesResponse struct {
	Interfaces map[uint64]Interface `json:"interfaces"`
}

type ServicesRequest struct{}

type Service struct {
	Uri string `json:"uri"`
}

type ServicesResponse struct {
	Services map[string][]Service `json:"services"`
}

type NotifyInterfaceDownRequest struct {
	IsdAs uint64 `json:"isd_as"`
	Id    uint64 `json:"id"`
}

type NotifyInterfaceDownResponse struct{}

type DRKeyLevel2Request struct {
	ValTime    int64  `json:"val_time"`
	ProtocolId string `json:"protocol_id"`
	SrcIa      uint64 `json:"src_ia"`
	DstIa      uint64 `json:"dst_ia"`
	SrcHost    string `json:"src_host,omitempty"`
	DstHost    string `json:"dst_host,omitempty"`
}

type DRKeyLevel2Response struct {
	Key        []byte `json:"key"`
	EpochBegin int64  `json:"epoch_begin"`
	EpochEnd   int64  `json:"epoch_end"`
}
