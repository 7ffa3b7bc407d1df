package ojp

import (
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/Mahboob22-bit/crowpanel-oev-display/backend-go/internal/models"
)

const (
	// TimestampLayout is the only timestamp form the service accepts.
	TimestampLayout = "2006-01-02T15:04:05Z"

	DefaultRequestorRef = "CrowPanel"
	DefaultMessageID    = "LocationSearch1"
)

// RequestOptions carries the envelope values that are not part of the query.
type RequestOptions struct {
	RequestorRef string
	MessageID    string
}

func (o RequestOptions) withDefaults() RequestOptions {
	if o.RequestorRef == "" {
		o.RequestorRef = DefaultRequestorRef
	}
	if o.MessageID == "" {
		o.MessageID = DefaultMessageID
	}
	return o
}

// BuildRequest renders a LocationInformationRequest for the dialect. The
// timestamp is converted to UTC; text values are escaped by the encoder.
func BuildRequest(d Dialect, q models.StopQuery, ts time.Time, opts RequestOptions) (string, error) {
	opts = opts.withDefaults()
	stamp := ts.UTC().Format(TimestampLayout)

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	switch d {
	case DialectV2Native:
		buildV2(doc, q, stamp, opts)
	case DialectV1Mixed:
		buildV1(doc, q, stamp, opts)
	default:
		return "", fmt.Errorf("building request: unsupported dialect %s", d)
	}

	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("writing request: %w", err)
	}
	return out, nil
}

func buildV2(doc *etree.Document, q models.StopQuery, stamp string, opts RequestOptions) {
	root := doc.CreateElement("OJP")
	root.CreateAttr("xmlns", NamespaceOJP)
	root.CreateAttr("xmlns:siri", NamespaceSIRI)
	root.CreateAttr("xmlns:xsi", NamespaceXSI)
	root.CreateAttr("version", DialectV2Native.Version())

	sr := root.CreateElement("OJPRequest").CreateElement("siri:ServiceRequest")
	sr.CreateElement("siri:ServiceRequestContext").CreateElement("siri:Language").SetText(q.Language)
	sr.CreateElement("siri:RequestTimestamp").SetText(stamp)
	sr.CreateElement("siri:RequestorRef").SetText(opts.RequestorRef)

	lir := sr.CreateElement("OJPLocationInformationRequest")
	lir.CreateElement("siri:RequestTimestamp").SetText(stamp)
	lir.CreateElement("siri:MessageIdentifier").SetText(opts.MessageID)
	lir.CreateElement("InitialInput").CreateElement("Name").SetText(q.StopName)

	r := lir.CreateElement("Restrictions")
	r.CreateElement("Type").SetText("stop")
	r.CreateElement("NumberOfResults").SetText(strconv.Itoa(q.MaxResults))
	r.CreateElement("IncludePtModes").SetText("true")
}

func buildV1(doc *etree.Document, q models.StopQuery, stamp string, opts RequestOptions) {
	root := doc.CreateElement("OJP")
	root.CreateAttr("xmlns:xsi", NamespaceXSI)
	root.CreateAttr("xmlns:xsd", NamespaceXSD)
	root.CreateAttr("xmlns", NamespaceSIRI)
	root.CreateAttr("version", DialectV1Mixed.Version())
	root.CreateAttr("xmlns:ojp", NamespaceOJP)

	sr := root.CreateElement("OJPRequest").CreateElement("ServiceRequest")
	sr.CreateElement("RequestTimestamp").SetText(stamp)
	sr.CreateElement("RequestorRef").SetText(opts.RequestorRef)

	lir := sr.CreateElement("ojp:OJPLocationInformationRequest")
	lir.CreateElement("RequestTimestamp").SetText(stamp)
	lir.CreateElement("ojp:InitialInput").CreateElement("ojp:LocationName").SetText(q.StopName)

	r := lir.CreateElement("ojp:Restrictions")
	r.CreateElement("ojp:Type").SetText("stop")
	r.CreateElement("ojp:NumberOfResults").SetText(strconv.Itoa(q.MaxResults))
}
