package graph

// Wire shapes of the Microsoft Graph event resource. Only the fields the
// calendar view selects are modelled.

type DateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type Location struct {
	DisplayName string `json:"displayName"`
}

type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type EmailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

type Attendee struct {
	EmailAddress EmailAddress `json:"emailAddress"`
	Type         string       `json:"type"`
}

type RemoteEvent struct {
	Id          string           `json:"id,omitempty"`
	Subject     string           `json:"subject"`
	Start       DateTimeTimeZone `json:"start"`
	End         DateTimeTimeZone `json:"end"`
	Location    *Location        `json:"location,omitempty"`
	Body        *ItemBody        `json:"body,omitempty"`
	BodyPreview string           `json:"bodyPreview,omitempty"`
	Attendees   []Attendee       `json:"attendees"`
}

type eventList struct {
	Value    []RemoteEvent `json:"value"`
	NextLink string        `json:"@odata.nextLink,omitempty"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	attendeeRequired = "required"
	contentTypeText  = "text"
	selectFields     = "id,subject,start,end,location,attendees,bodyPreview"
	pageSize         = 100
)
