package api

//Channel identifies the family of a frame exchanged over the payload socket.
//Frames are single-line JSON objects; the channel of a response tells the
//caller whether it got a result or an error.
type Channel uint

const (
	//ChannelError carries error responses
	ChannelError Channel = iota
	//ChannelTest carries test service requests and responses
	ChannelTest
	//ChannelReady carries payload-ready notifications to the host
	ChannelReady
)

//Request codes of the test service
const (
	RequestAddInteger uint = iota + 1
	RequestReadProperty
	RequestInstanceSecret
	RequestAttestationCdi
	RequestAttestationChain
	RequestApkContentsPath
	RequestEncryptedStoragePath
)

//Base is embedded in every frame
type Base struct {
	Channel uint `json:"channel"`
}

//Error is sent on ChannelError instead of the expected response
type Error struct {
	Base
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

//Request is a test service call
type Request struct {
	Base
	Request uint   `json:"request"`
	ID      string `json:"id,omitempty"`
	A       int32  `json:"a,omitempty"`
	B       int32  `json:"b,omitempty"`
	Prop    string `json:"prop,omitempty"`
}

//SumResponse answers RequestAddInteger
type SumResponse struct {
	Base
	ID  string `json:"id,omitempty"`
	Sum int32  `json:"sum"`
}

//PropResponse answers RequestReadProperty
type PropResponse struct {
	Base
	ID    string `json:"id,omitempty"`
	Value string `json:"value"`
}

//BlobResponse answers the secret and attestation requests;
//Data travels base64-encoded
type BlobResponse struct {
	Base
	ID   string `json:"id,omitempty"`
	Data []byte `json:"data"`
}

//PathResponse answers the path requests; an empty Path is a valid
//answer for RequestEncryptedStoragePath
type PathResponse struct {
	Base
	ID   string `json:"id,omitempty"`
	Path string `json:"path"`
}

//Ready is sent once by the payload to the host supervisor port
type Ready struct {
	Base
	UUID string `json:"uuid,omitempty"`
}
