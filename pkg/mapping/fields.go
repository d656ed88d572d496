package mapping

import "maps"

// FieldsMapping ánh xạ tên field generic sang một hoặc nhiều tên field của
// platform, kèm chiều ngược platform -> generic để nhận diện field khi parse.
type FieldsMapping struct {
	fieldMap map[string][]string
	reverse  map[string]string
}

// NewFieldsMapping tạo FieldsMapping rỗng.
func NewFieldsMapping() FieldsMapping {
	return FieldsMapping{
		fieldMap: make(map[string][]string),
		reverse:  make(map[string]string),
	}
}

// LoadMappings nạp các ánh xạ generic -> platform; ghi đè các key trùng.
func (fm *FieldsMapping) LoadMappings(mappings map[string][]string) {
	for generic, platform := range mappings {
		fm.AddMapping(generic, platform...)
	}
}

// AddMapping thêm một ánh xạ; một field generic có thể có nhiều field platform.
func (fm *FieldsMapping) AddMapping(generic string, platform ...string) {
	if fm.fieldMap == nil {
		fm.fieldMap = make(map[string][]string)
		fm.reverse = make(map[string]string)
	}
	if len(platform) == 0 {
		platform = []string{generic}
	}
	fm.fieldMap[generic] = append([]string(nil), platform...)
	for _, p := range platform {
		fm.reverse[p] = generic
	}
}

// PlatformFieldNames trả về các field platform cho generic, hoặc nil.
func (fm FieldsMapping) PlatformFieldNames(generic string) []string {
	return fm.fieldMap[generic]
}

// GenericFieldName tra ngược tên field platform.
func (fm FieldsMapping) GenericFieldName(platform string) (string, bool) {
	g, ok := fm.reverse[platform]
	return g, ok
}

// HasMapping kiểm tra có ánh xạ cho field generic hay không.
func (fm FieldsMapping) HasMapping(generic string) bool {
	_, ok := fm.fieldMap[generic]
	return ok
}

// IsSuitable: mọi field platform được yêu cầu đều có ánh xạ ngược.
func (fm FieldsMapping) IsSuitable(required []string) bool {
	for _, f := range required {
		if _, ok := fm.reverse[f]; !ok {
			return false
		}
	}
	return true
}

// Mappings trả về bản sao các ánh xạ hiện có.
func (fm FieldsMapping) Mappings() map[string][]string {
	if fm.fieldMap == nil {
		return map[string][]string{}
	}
	return maps.Clone(fm.fieldMap)
}

// mergeMissing copies entries of other that fm does not define yet.
func (fm *FieldsMapping) mergeMissing(other FieldsMapping) {
	for generic, platform := range other.fieldMap {
		if fm.HasMapping(generic) {
			continue
		}
		fm.fieldMap[generic] = append([]string(nil), platform...)
		for _, p := range platform {
			if _, ok := fm.reverse[p]; !ok {
				fm.reverse[p] = generic
			}
		}
	}
}
