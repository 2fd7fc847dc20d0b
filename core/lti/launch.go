package lti

import (
	"net/url"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

// Launch carries the LTI 1.1 launch parameters the outcome pipeline cares
// about. OAuth protocol parameters are handled separately by the signature
// validator; context/role parameters beyond these are ignored.
type Launch struct {
	ConsumerKey       string `form:"oauth_consumer_key" validate:"required,max=32"`
	UserID            string `form:"user_id" validate:"required"`
	ResourceLinkID    string `form:"resource_link_id" validate:"required"`
	SourcedID         string `form:"lis_result_sourcedid"`
	OutcomeServiceURL string `form:"lis_outcome_service_url" validate:"omitempty,url"`
	InstanceGUID      string `form:"tool_consumer_instance_guid"`
	ContextID         string `form:"context_id"`
	Roles             string `form:"roles"`
}

// ParseLaunch extracts launch parameters from a decoded form body.
func ParseLaunch(form url.Values) Launch {
	return Launch{
		ConsumerKey:       form.Get("oauth_consumer_key"),
		UserID:            form.Get("user_id"),
		ResourceLinkID:    form.Get("resource_link_id"),
		SourcedID:         form.Get("lis_result_sourcedid"),
		OutcomeServiceURL: form.Get("lis_outcome_service_url"),
		InstanceGUID:      form.Get("tool_consumer_instance_guid"),
		ContextID:         form.Get("context_id"),
		Roles:             form.Get("roles"),
	}
}

func (l *Launch) Validate(validate *validator.Validate) error {
	l.UserID = core.CleanString(l.UserID)
	l.SourcedID = core.CleanString(l.SourcedID)
	l.OutcomeServiceURL = core.CleanString(l.OutcomeServiceURL)
	return validate.Struct(l)
}

// Gradable reports whether the launch supplied everything needed to arm the
// outcome pathway back to the Tool Consumer.
func (l *Launch) Gradable() bool {
	return l.SourcedID != "" && l.OutcomeServiceURL != ""
}
