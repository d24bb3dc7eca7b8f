package models

// LeaseStatus 租约文档的整体状态，由签署请求集合推导，不落库
type LeaseStatus string

const (
	// LeaseStatusDraft 已解析未提交，只存在于预览中
	LeaseStatusDraft LeaseStatus = "draft"
	// LeaseStatusPendingSignature 已提交，至少一个签署请求未完成
	LeaseStatusPendingSignature LeaseStatus = "pending_signature"
	// LeaseStatusActive 所有必需签署方均已签署
	LeaseStatusActive LeaseStatus = "active"
	// LeaseStatusDeclined 任一签署方拒签，需管理员重新生成
	LeaseStatusDeclined LeaseStatus = "declined"
	// LeaseStatusTerminated 已终止（主动终止或到期不续约），终态
	LeaseStatusTerminated LeaseStatus = "terminated"
	// LeaseStatusTemplate 未绑定租客，不进入签署流程
	LeaseStatusTemplate LeaseStatus = "template"
)

func (s LeaseStatus) String() string {
	return string(s)
}

// IsTerminal 终态不再接受签署
func (s LeaseStatus) IsTerminal() bool {
	return s == LeaseStatusDeclined || s == LeaseStatusTerminated
}

// SignerRole 签署角色
type SignerRole string

const (
	SignerRoleTenant   SignerRole = "tenant"
	SignerRoleLandlord SignerRole = "landlord"
)

// RequiredSignerRoles 绑定租客时需要的签署角色，顺序固定
var RequiredSignerRoles = []SignerRole{SignerRoleTenant, SignerRoleLandlord}

func (r SignerRole) Valid() bool {
	return r == SignerRoleTenant || r == SignerRoleLandlord
}

// SignatureStatus 单个签署请求状态
type SignatureStatus string

const (
	SignatureStatusPending  SignatureStatus = "pending"
	SignatureStatusSigned   SignatureStatus = "signed"
	SignatureStatusDeclined SignatureStatus = "declined"
)

func (s SignatureStatus) Valid() bool {
	switch s {
	case SignatureStatusPending, SignatureStatusSigned, SignatureStatusDeclined:
		return true
	}
	return false
}

// TemplateKind 模板类型
type TemplateKind string

const (
	// TemplateKindBuilder 由租约构建器生成的参数集
	TemplateKindBuilder TemplateKind = "builder"
	// TemplateKindUploadedPDF 上传的 PDF 引用
	TemplateKindUploadedPDF TemplateKind = "uploaded_pdf"
)

func (k TemplateKind) Valid() bool {
	return k == TemplateKindBuilder || k == TemplateKindUploadedPDF
}

// ApplicationStatus 上游租房申请状态，仅作信息参考
type ApplicationStatus string

const (
	ApplicationStatusPending            ApplicationStatus = "pending"
	ApplicationStatusDocumentsSubmitted ApplicationStatus = "documents_submitted"
	ApplicationStatusApproved           ApplicationStatus = "approved"
)

var applicationStatusRank = map[ApplicationStatus]int{
	ApplicationStatusPending:            1,
	ApplicationStatusDocumentsSubmitted: 2,
	ApplicationStatusApproved:           3,
}

func (s ApplicationStatus) Valid() bool {
	_, ok := applicationStatusRank[s]
	return ok
}

// CanAdvanceTo 申请状态只能前进，不允许回退
func (s ApplicationStatus) CanAdvanceTo(next ApplicationStatus) bool {
	from, ok := applicationStatusRank[s]
	if !ok {
		return false
	}
	to, ok := applicationStatusRank[next]
	if !ok {
		return false
	}
	return to >= from
}

// AllowsLeaseCreation 资料已提交或已批准的申请才能生成租约
func (s ApplicationStatus) AllowsLeaseCreation() bool {
	return s == ApplicationStatusDocumentsSubmitted || s == ApplicationStatusApproved
}
