package domain

// Service is an entry of the catalog of job kinds the client knows how to ask for.
type Service struct {
	Name        string
	Kind        int
	Description string
	Params      map[string]string
}

// generate and summarize share kind 5001; the task param tells them apart.
var Services = []Service{
	{Name: "generate", Kind: 5001, Description: "AI text generation"},
	{Name: "translate", Kind: 5000, Description: "Text translation"},
	{Name: "summarize", Kind: 5001, Description: "Text summarization", Params: map[string]string{"task": "summarize"}},
	{Name: "image", Kind: 5100, Description: "Image generation"},
	{Name: "extract", Kind: 5002, Description: "Extract content from URLs"},
}

func ServiceByName(name string) (Service, bool) {
	for i := range Services {
		if Services[i].Name == name {
			return Services[i], true
		}
	}

	return Service{}, false
}
