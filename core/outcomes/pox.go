package outcomes

import (
	"encoding/xml"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// IMS POX (Plain Old XML) envelope for basic outcomes, LTI 1.1.
const (
	poxNamespace = "http://www.imsglobal.org/services/ltiv1p1/xsd/imsoms_v1p0"
	poxVersion   = "V1.0"

	codeMajorSuccess = "success"
)

type replaceResultRequest struct {
	XMLName   xml.Name `xml:"imsx_POXEnvelopeRequest"`
	Namespace string   `xml:"xmlns,attr"`
	Version   string   `xml:"imsx_POXHeader>imsx_POXRequestHeaderInfo>imsx_version"`
	MessageID string   `xml:"imsx_POXHeader>imsx_POXRequestHeaderInfo>imsx_messageIdentifier"`
	SourcedID string   `xml:"imsx_POXBody>replaceResultRequest>resultRecord>sourcedGUID>sourcedId"`
	Language  string   `xml:"imsx_POXBody>replaceResultRequest>resultRecord>result>resultScore>language"`
	TextScore string   `xml:"imsx_POXBody>replaceResultRequest>resultRecord>result>resultScore>textString"`
}

// ReplaceResultBody builds the replaceResultRequest envelope overwriting the
// Tool Consumer grade slot named by sourcedID with the formatted score.
func ReplaceResultBody(sourcedID, textScore string) ([]byte, error) {
	req := replaceResultRequest{
		Namespace: poxNamespace,
		Version:   poxVersion,
		MessageID: uuid.NewString(),
		SourcedID: sourcedID,
		Language:  "en",
		TextScore: textScore,
	}
	body, err := xml.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling replaceResult request")
	}
	return append([]byte(xml.Header), body...), nil
}

type poxResponse struct {
	XMLName     xml.Name
	CodeMajor   string `xml:"imsx_POXHeader>imsx_POXResponseHeaderInfo>imsx_statusInfo>imsx_codeMajor"`
	Description string `xml:"imsx_POXHeader>imsx_POXResponseHeaderInfo>imsx_statusInfo>imsx_description"`
}

// parseResponse extracts the codeMajor status from a POX response envelope.
// Element matching is by local name, so namespace-prefixed responses parse
// the same as unprefixed ones.
func parseResponse(body []byte) (codeMajor, description string, err error) {
	var resp poxResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return "", "", errors.Wrap(err, "parsing outcome response")
	}
	return resp.CodeMajor, resp.Description, nil
}
