// Package devices loads the bundled printer-model descriptor and answers
// model -> EEPROM layout lookups. Grounded on
// original_source/ez_reset/devices.py's ElementTree-based by_model, ported
// to encoding/xml struct tags (no XML library appears anywhere in the
// retrieval pack, so this component is stdlib by necessity).
package devices

import (
	_ "embed"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/CiRIP/ez-reset/errkind"
)

//go:embed devices.xml
var catalogXML []byte

// Counter is one waste-ink counter: the EEPROM cells (little-endian
// across cells) that together hold its current value, and the maximum
// value the counter can reach before the printer refuses to print.
type Counter struct {
	Addresses []uint16
	Max       int
}

// Device is the resolved profile for one printer model: the bytes used
// in factory command framing, the counters get_waste reads, and the
// reset_waste address/value pairs.
type Device struct {
	Model []byte
	Key   []byte

	Counters []Counter
	Reset    map[uint16]byte
}

// Registry is a loaded device descriptor catalog.
type Registry struct {
	printers map[string]printerXML
	specs    map[string]specXML
}

type catalogXMLRoot struct {
	XMLName  xml.Name     `xml:"catalog"`
	Printers []printerXML `xml:"printers>printer"`
	Devices  []specXML    `xml:"devices>spec"`
}

type printerXML struct {
	Model string `xml:"model,attr"`
	Specs string `xml:"specs,attr"`
}

type specXML struct {
	ID      string      `xml:"id,attr"`
	Service *serviceXML `xml:"service"`
	Waste   *wasteXML   `xml:"waste"`
}

type serviceXML struct {
	Factory string `xml:"factory"`
	Keyword string `xml:"keyword"`
}

type wasteXML struct {
	Query *queryXML `xml:"query"`
	Reset string    `xml:"reset"`
}

type queryXML struct {
	Counters []counterXML `xml:"counter"`
}

type counterXML struct {
	Entry    string `xml:"entry"`
	Max      int    `xml:"max"`
	CharData string `xml:",chardata"`
}

// addresses returns the counter's entry text, falling back to the
// element's own character data when it has no <entry> child — mirroring
// devices.py's `entry_el.text if entry_el is not None else counter_el.text`.
func (c counterXML) addresses() string {
	if strings.TrimSpace(c.Entry) != "" {
		return c.Entry
	}
	return c.CharData
}

// NewRegistry parses the bundled device descriptor and returns a
// ready-to-query Registry.
func NewRegistry() (*Registry, error) {
	var root catalogXMLRoot
	if err := xml.Unmarshal(catalogXML, &root); err != nil {
		return nil, errkind.FormatErr("malformed device descriptor", err)
	}

	r := &Registry{
		printers: make(map[string]printerXML, len(root.Printers)),
		specs:    make(map[string]specXML, len(root.Devices)),
	}
	for _, p := range root.Printers {
		r.printers[p.Model] = p
	}
	for _, s := range root.Devices {
		r.specs[s.ID] = s
	}
	return r, nil
}

// Models lists every printer model the catalog describes, supporting a
// -list-models CLI flag.
func (r *Registry) Models() []string {
	out := make([]string, 0, len(r.printers))
	for model := range r.printers {
		out = append(out, model)
	}
	return out
}

// ByModel resolves model to a Device profile by unioning every spec id
// its <printer specs="..."> attribute lists. Returns
// errkind.UnknownModelError if model is not in the catalog at all.
func (r *Registry) ByModel(model string) (Device, error) {
	printer, ok := r.printers[model]
	if !ok {
		return Device{}, errkind.UnknownModelErr(model)
	}

	device := Device{Reset: map[uint16]byte{}}

	for _, specID := range strings.Split(printer.Specs, ",") {
		specID = strings.TrimSpace(specID)
		if specID == "" {
			continue
		}
		spec, ok := r.specs[specID]
		if !ok {
			continue
		}

		if spec.Service != nil {
			factory, err := parseByteList(spec.Service.Factory)
			if err != nil {
				return Device{}, errkind.FormatErr("spec "+specID+" factory field", err)
			}
			device.Model = factory

			if strings.TrimSpace(spec.Service.Keyword) != "" {
				keyword, err := parseByteList(spec.Service.Keyword)
				if err != nil {
					return Device{}, errkind.FormatErr("spec "+specID+" keyword field", err)
				}
				device.Key = keyword
			}
		}

		if spec.Waste != nil {
			if spec.Waste.Query != nil {
				for _, c := range spec.Waste.Query.Counters {
					addrs, err := parseAddressList(c.addresses())
					if err != nil {
						return Device{}, errkind.FormatErr("spec "+specID+" counter entry", err)
					}
					device.Counters = append(device.Counters, Counter{Addresses: addrs, Max: c.Max})
				}
			}

			if strings.TrimSpace(spec.Waste.Reset) != "" {
				tokens := strings.Fields(spec.Waste.Reset)
				if len(tokens)%2 != 0 {
					return Device{}, errkind.FormatErr("spec "+specID+" reset list has an odd token count", nil)
				}
				for i := 0; i < len(tokens); i += 2 {
					addr, err := strconv.ParseUint(tokens[i], 0, 16)
					if err != nil {
						return Device{}, errkind.FormatErr("spec "+specID+" reset address", err)
					}
					val, err := strconv.ParseUint(tokens[i+1], 0, 8)
					if err != nil {
						return Device{}, errkind.FormatErr("spec "+specID+" reset value", err)
					}
					device.Reset[uint16(addr)] = byte(val)
				}
			}
		}
	}

	return device, nil
}

func parseByteList(s string) ([]byte, error) {
	fields := strings.Fields(s)
	out := make([]byte, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 0, 8)
		if err != nil {
			return nil, err
		}
		out = append(out, byte(v))
	}
	return out, nil
}

func parseAddressList(s string) ([]uint16, error) {
	fields := strings.Fields(s)
	out := make([]uint16, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseUint(f, 0, 16)
		if err != nil {
			return nil, err
		}
		out = append(out, uint16(v))
	}
	return out, nil
}
