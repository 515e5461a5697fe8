package gateway

import "amfgw/pkg/amfval"

// field reads a named field off a decoded Flex messaging object,
// checking dynamic members first (the common case for remoting/command
// messages decoded as dynamic objects whose trait alias the registry
// resolves to a server class id such as "CommandMessage") then sealed
// fields by name.
func field(obj *amfval.Object, name string) (interface{}, bool) {
	if obj.Dynamic != nil {
		if v, ok := obj.Dynamic.Get(name); ok {
			return v, true
		}
	}
	for i, n := range obj.Trait.Sealed {
		if n == name && i < len(obj.Sealed) {
			return obj.Sealed[i], true
		}
	}
	return nil, false
}

func fieldString(obj *amfval.Object, name string) string {
	v, ok := field(obj, name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// argList reads a RemotingMessage's body as a remoting argument list:
// an Array's dense segment, or a single-element list if body is not
// itself a sequence.
func argList(obj *amfval.Object) []interface{} {
	v, ok := field(obj, "body")
	if !ok || v == nil {
		return nil
	}
	if arr, ok := v.(*amfval.Array); ok {
		return arr.Dense
	}
	return []interface{}{v}
}

// newAcknowledge builds an AcknowledgeMessage replying to request,
// carrying body as its payload.
func newAcknowledge(request *amfval.Object, body interface{}) *amfval.Object {
	trait := &amfval.Trait{Alias: "AcknowledgeMessage", Dynamic: true}
	msg := amfval.NewObject(trait)
	msg.Dynamic.Set("body", body)
	if corr, ok := field(request, "messageId"); ok {
		msg.Dynamic.Set("correlationId", corr)
	}
	return msg
}

// newErrorMessage builds an ErrorMessage replying to request. In
// production mode faultDetail is written as the empty string; no
// rootCause field is written in either mode.
func newErrorMessage(request *amfval.Object, faultCode, faultString, detail string, production bool) *amfval.Object {
	trait := &amfval.Trait{Alias: "ErrorMessage", Dynamic: true}
	msg := amfval.NewObject(trait)
	msg.Dynamic.Set("faultCode", faultCode)
	msg.Dynamic.Set("faultString", faultString)
	if !production {
		msg.Dynamic.Set("faultDetail", detail)
	} else {
		msg.Dynamic.Set("faultDetail", "")
	}
	if request != nil {
		if corr, ok := field(request, "messageId"); ok {
			msg.Dynamic.Set("correlationId", corr)
		}
	}
	return msg
}

// errorObjectAMF0 builds the AMF0 error-object record: a plain
// anonymous Object with the same fault fields. It is used for every
// plain (non-messaging) call's error response, whatever the packet
// version, and for AMF0 packets' credentials failures. In production
// mode description and details are emptied and line is 0.
func errorObjectAMF0(faultCode, faultString, detail string, production bool) *amfval.Object {
	obj := amfval.NewObject(&amfval.Trait{Dynamic: true})
	obj.Dynamic.Set("code", faultCode)
	if production {
		obj.Dynamic.Set("description", "")
		obj.Dynamic.Set("details", "")
		obj.Dynamic.Set("line", float64(0))
	} else {
		obj.Dynamic.Set("description", faultString)
		obj.Dynamic.Set("details", detail)
	}
	return obj
}
