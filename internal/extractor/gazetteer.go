package extractor

// Gazetteers for the rule-based extractor. Lookup keys are lowercased.

var orgSuffixes = map[string]bool{
	"inc": true, "corp": true, "co": true, "ltd": true, "llc": true,
	"gmbh": true, "plc": true, "sa": true, "ag": true,
	"company": true, "corporation": true, "incorporated": true,
	"technologies": true, "labs": true, "systems": true, "holdings": true,
	"university": true, "institute": true, "foundation": true,
}

var knownOrgs = map[string]bool{
	"apple": true, "google": true, "microsoft": true, "amazon": true,
	"meta": true, "netflix": true, "ibm": true, "intel": true, "nvidia": true,
	"openai": true, "anthropic": true, "oracle": true, "salesforce": true,
	"nasa": true, "unesco": true, "interpol": true,
}

var knownProducts = map[string]bool{
	"iphone": true, "ipad": true, "macintosh": true, "android": true,
	"windows": true, "linux": true, "kubernetes": true, "postgres": true,
	"postgresql": true, "neo4j": true,
}

var knownPlaces = map[string]bool{
	// US states
	"alabama": true, "alaska": true, "arizona": true, "arkansas": true,
	"california": true, "colorado": true, "connecticut": true, "delaware": true,
	"florida": true, "georgia": true, "hawaii": true, "idaho": true,
	"illinois": true, "indiana": true, "iowa": true, "kansas": true,
	"kentucky": true, "louisiana": true, "maine": true, "maryland": true,
	"massachusetts": true, "michigan": true, "minnesota": true,
	"mississippi": true, "missouri": true, "montana": true, "nebraska": true,
	"nevada": true, "ohio": true, "oklahoma": true, "oregon": true,
	"pennsylvania": true, "tennessee": true, "texas": true, "utah": true,
	"vermont": true, "virginia": true, "washington": true, "wisconsin": true,
	"wyoming": true,
	"new york": true, "new jersey": true, "new mexico": true,
	"new hampshire": true, "north carolina": true, "north dakota": true,
	"south carolina": true, "south dakota": true, "rhode island": true,
	"west virginia": true,
	// cities
	"cupertino": true, "san francisco": true, "los angeles": true,
	"seattle": true, "austin": true, "boston": true, "chicago": true,
	"denver": true, "portland": true, "atlanta": true, "miami": true,
	"houston": true, "dallas": true, "philadelphia": true, "detroit": true,
	"palo alto": true, "mountain view": true, "menlo park": true,
	"redmond": true, "cambridge": true,
	"london": true, "paris": true, "berlin": true, "munich": true,
	"amsterdam": true, "dublin": true, "madrid": true, "rome": true,
	"zurich": true, "stockholm": true, "tokyo": true, "osaka": true,
	"beijing": true, "shanghai": true, "shenzhen": true, "seoul": true,
	"singapore": true, "sydney": true, "melbourne": true, "toronto": true,
	"vancouver": true, "bangalore": true, "mumbai": true, "tel aviv": true,
	// countries
	"france": true, "germany": true, "spain": true, "italy": true,
	"ireland": true, "netherlands": true, "switzerland": true, "sweden": true,
	"norway": true, "denmark": true, "finland": true, "poland": true,
	"japan": true, "china": true, "india": true, "australia": true,
	"canada": true, "brazil": true, "mexico": true, "argentina": true,
	"israel": true, "egypt": true, "kenya": true, "nigeria": true,
	"united states": true, "united kingdom": true, "south korea": true,
	"new zealand": true,
}

var firstNames = map[string]bool{
	"james": true, "john": true, "robert": true, "michael": true,
	"william": true, "david": true, "richard": true, "joseph": true,
	"thomas": true, "charles": true, "christopher": true, "daniel": true,
	"matthew": true, "anthony": true, "mark": true, "donald": true,
	"steven": true, "steve": true, "paul": true, "andrew": true,
	"joshua": true, "kenneth": true, "kevin": true, "brian": true,
	"george": true, "timothy": true, "ronald": true, "edward": true,
	"jason": true, "jeffrey": true, "ryan": true, "jacob": true,
	"mary": true, "patricia": true, "jennifer": true, "linda": true,
	"elizabeth": true, "barbara": true, "susan": true, "jessica": true,
	"sarah": true, "karen": true, "lisa": true, "nancy": true,
	"betty": true, "margaret": true, "sandra": true, "ashley": true,
	"kimberly": true, "emily": true, "donna": true, "michelle": true,
	"carol": true, "amanda": true, "dorothy": true, "melissa": true,
	"deborah": true, "stephanie": true, "rebecca": true, "sharon": true,
	"laura": true, "grace": true, "anna": true, "maria": true,
	"satya": true, "sundar": true, "elon": true, "jeff": true, "tim": true,
	"bill": true, "larry": true, "sergey": true, "marc": true, "jack": true,
	"sam": true, "ada": true, "alan": true, "grady": true, "dennis": true,
	"ken": true, "rob": true, "guido": true, "linus": true,
}

var monthNames = map[string]bool{
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
}
