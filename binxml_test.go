package apkparser

import (
	"strings"
	"testing"
)

// buildBinaryXml assembles a minimal binary AndroidManifest.xml: a root
// <manifest> with an unqualified "package" attribute, one android: namespace
// declaration, and a nested <activity android:name="..."> child with text.
func buildBinaryXml() []byte {
	strs := []string{
		"android",                                       // 0: ns prefix
		"http://schemas.android.com/apk/res/android",     // 1: ns uri
		"manifest",                                       // 2
		"package",                                        // 3
		"com.example.app",                                // 4
		"activity",                                       // 5
		"name",                                            // 6
		".MainActivity",                                  // 7
		"hello",                                          // 8: text
	}
	pool := utf8StringPool(strs)

	var ns byteBuf
	ns.u16(chunkXmlNsStart)
	ns.u16(16)
	ns.u32(0) // chunk_size placeholder
	ns.u32(0) // line_num
	ns.u32(noString)
	ns.u32(0) // prefix -> "android"
	ns.u32(1) // uri -> schema url
	ns.patchU32(4, uint32(ns.len()))

	var root byteBuf
	root.u16(chunkXmlTagStart)
	root.u16(16)
	root.u32(0) // chunk_size placeholder
	root.u32(0) // line_num
	root.u32(noString)
	root.u32(noString) // ns_uri_idx: manifest itself isn't namespaced
	root.u32(2)         // name -> "manifest"
	root.u16(20)        // attr_start (relative to body)
	root.u16(20)        // attr_size
	root.u16(1)         // attr_count
	root.pad(6)         // id/class/style attribute index slots, unused

	// attribute: package="com.example.app"
	root.u32(noString) // ns_uri_idx
	root.u32(3)         // name -> "package"
	root.u32(4)         // raw_value_idx -> "com.example.app"
	root.u16(8)
	root.u8(0)
	root.u8(uint8(typeString))
	root.u32(4)
	root.patchU32(4, uint32(root.len()))

	var activity byteBuf
	activity.u16(chunkXmlTagStart)
	activity.u16(16)
	activity.u32(0)
	activity.u32(0)
	activity.u32(noString)
	activity.u32(noString) // ns_uri_idx: activity itself isn't namespaced
	activity.u32(5)         // name -> "activity"
	activity.u16(20)
	activity.u16(20)
	activity.u16(1)
	activity.pad(6)

	// attribute: android:name=".MainActivity"
	activity.u32(1) // ns_uri_idx -> android
	activity.u32(6) // name -> "name"
	activity.u32(7) // raw_value_idx -> ".MainActivity"
	activity.u16(8)
	activity.u8(0)
	activity.u8(uint8(typeString))
	activity.u32(7)
	activity.patchU32(4, uint32(activity.len()))

	var text byteBuf
	text.u16(chunkXmlText)
	text.u16(16)
	text.u32(0)
	text.u32(0)
	text.u32(noString)
	text.u32(8) // -> "hello"
	text.patchU32(4, uint32(text.len()))

	var activityEnd byteBuf
	activityEnd.u16(chunkXmlTagEnd)
	activityEnd.u16(16)
	activityEnd.u32(16)
	activityEnd.u32(0)
	activityEnd.u32(noString)

	var rootEnd byteBuf
	rootEnd.u16(chunkXmlTagEnd)
	rootEnd.u16(16)
	rootEnd.u32(16)
	rootEnd.u32(0)
	rootEnd.u32(noString)

	var nsEnd byteBuf
	nsEnd.u16(chunkXmlNsEnd)
	nsEnd.u16(16)
	nsEnd.u32(0)
	nsEnd.u32(0)
	nsEnd.u32(noString)
	nsEnd.u32(0)
	nsEnd.u32(1)
	nsEnd.patchU32(4, uint32(nsEnd.len()))

	var file byteBuf
	file.u16(chunkXml)
	file.u16(8)
	file.u32(0) // chunk_size placeholder
	file.raw(pool)
	file.raw(ns.b)
	file.raw(root.b)
	file.raw(activity.b)
	file.raw(text.b)
	file.raw(activityEnd.b)
	file.raw(rootEnd.b)
	file.raw(nsEnd.b)
	file.patchU32(4, uint32(file.len()))

	return file.b
}

func TestDecodeXmlTree(t *testing.T) {
	buf := buildBinaryXml()
	text, elements, err := DecodeXml(buf, nil, false, true)
	if err != nil {
		t.Fatalf("DecodeXml: %v", err)
	}

	if len(elements) != 2 {
		t.Fatalf("len(elements) = %d, want 2", len(elements))
	}

	root := elements[0]
	if root.Name != "manifest" || !root.IsRoot {
		t.Errorf("root = %+v", root)
	}
	if len(root.Children) != 1 || root.Children[0].Name != "activity" {
		t.Fatalf("root.Children = %+v", root.Children)
	}

	var pkgAttr, xmlnsAttr *XmlAttribute
	for i := range root.Attributes {
		a := &root.Attributes[i]
		switch {
		case a.Name == "package":
			pkgAttr = a
		case a.NamespacePrefix == "xmlns":
			xmlnsAttr = a
		}
	}
	if pkgAttr == nil || pkgAttr.Value != "com.example.app" {
		t.Errorf("package attr = %+v", pkgAttr)
	}
	if xmlnsAttr == nil || xmlnsAttr.Name != "android" || xmlnsAttr.Value != androidNS {
		t.Errorf("xmlns attr = %+v", xmlnsAttr)
	}

	activity := root.Children[0]
	if len(activity.Attributes) != 1 {
		t.Fatalf("activity attrs = %+v", activity.Attributes)
	}
	nameAttr := activity.Attributes[0]
	if nameAttr.NamespacePrefix != "android" || nameAttr.Name != "name" || nameAttr.Value != ".MainActivity" {
		t.Errorf("activity name attr = %+v", nameAttr)
	}
	if len(activity.Text) != 1 || activity.Text[0] != "hello" {
		t.Errorf("activity text = %+v", activity.Text)
	}

	if !strings.Contains(text, `<manifest`) || !strings.Contains(text, `xmlns:android="`+androidNS+`"`) {
		t.Errorf("serialized text missing expected fragments: %s", text)
	}
	if !strings.Contains(text, `<activity android:name=".MainActivity">`) {
		t.Errorf("serialized text missing activity tag: %s", text)
	}
	if !strings.Contains(text, `<![CDATA[hello]]>`) {
		t.Errorf("serialized text missing CDATA: %s", text)
	}
}

func TestDecodeXmlPlainTextRejected(t *testing.T) {
	cases := []string{
		`<?xml version="1.0" encoding="utf-8" standalone="no"?>`,
		"<manifest></manifest>",
	}
	for _, c := range cases {
		_, _, err := DecodeXml([]byte(c), nil, false, false)
		if err != ErrPlainTextManifest {
			t.Errorf("DecodeXml(%q) err = %v, want ErrPlainTextManifest", c, err)
		}
	}
}
